package validation

import (
	"testing"

	"github.com/piecework/piecework/model"

	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func testContainer() *model.Container {
	return &model.Container{
		Fields: []*model.Field{
			{Name: "name", Label: "Name", Required: true, MinLength: 2, MaxLength: 10},
			{Name: "email", Type: model.FieldEmail},
			{Name: "zip", Pattern: `[0-9]{5}`},
		},
		Children: []*model.Container{
			{
				Title: "Details",
				Fields: []*model.Field{
					{Name: "age", Type: model.FieldNumber, MinValue: ptr(18), MaxValue: ptr(120)},
					{Name: "color", Type: model.FieldSelect, Options: []model.Option{{Value: "red"}, {Value: "blue"}}},
					{Name: "computed", ReadOnly: true, Required: true},
				},
			},
			{
				ReadOnly: true,
				Fields:   []*model.Field{{Name: "locked", Required: true}},
			},
		},
	}
}

func TestValidate(t *testing.T) {
	v := New()
	for _, tc := range []struct {
		name    string
		data    map[string][]string
		lenient bool
		invalid []string
	}{
		{"valid", map[string][]string{"name": {"Alice"}, "email": {"a@example.com"}, "zip": {"12345"}, "age": {"30"}, "color": {"red"}}, false, nil},
		{"missing required", map[string][]string{}, false, []string{"name"}},
		{"blank is missing", map[string][]string{"name": {"  "}}, false, []string{"name"}},
		{"lenient skips required", map[string][]string{}, true, nil},
		{"lenient still checks format", map[string][]string{"email": {"nope"}}, true, []string{"email"}},
		{"too short", map[string][]string{"name": {"A"}}, false, []string{"name"}},
		{"too long", map[string][]string{"name": {"Bartholomew Jr"}}, false, []string{"name"}},
		{"bad email", map[string][]string{"name": {"Al"}, "email": {"Al <al@example.com>"}}, false, []string{"email"}},
		{"pattern anchored", map[string][]string{"name": {"Al"}, "zip": {"123456"}}, false, []string{"zip"}},
		{"not a number", map[string][]string{"name": {"Al"}, "age": {"old"}}, false, []string{"age"}},
		{"below min", map[string][]string{"name": {"Al"}, "age": {"17"}}, false, []string{"age"}},
		{"above max", map[string][]string{"name": {"Al"}, "age": {"121"}}, false, []string{"age"}},
		{"option", map[string][]string{"name": {"Al"}, "color": {"green"}}, false, []string{"color"}},
		{"unknown ignored", map[string][]string{"name": {"Al"}, "extra": {"x"}}, false, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			results := v.Validate(testContainer(), tc.data, tc.lenient)
			var invalid []string
			for name := range results {
				invalid = append(invalid, name)
			}
			assert.ElementsMatch(t, tc.invalid, invalid, "results: %v", results)
			for _, msgs := range results {
				for _, m := range msgs {
					assert.Equal(t, model.MessageError, m.Type)
					assert.NotEmpty(t, m.Text)
				}
			}
		})
	}
}

func TestValidateNil(t *testing.T) {
	assert.Empty(t, New().Validate(nil, map[string][]string{"a": {"b"}}, false))
}

func TestInvalidPattern(t *testing.T) {
	c := &model.Container{Fields: []*model.Field{{Name: "x", Pattern: "("}}}
	results := New().Validate(c, map[string][]string{"x": {"a"}}, false)
	assert.Len(t, results["x"], 1)
}
