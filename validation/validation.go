// Package validation checks submitted values against the fields of a form container.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/piecework/piecework/model"
)

// Validator validates submitted data.
// Compiled field patterns are cached and shared between calls.
type Validator struct {
	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
}

func New() *Validator {
	return &Validator{patterns: make(map[string]*regexp.Regexp)}
}

func (v *Validator) pattern(expr string) (*regexp.Regexp, error) {
	v.mu.RLock()
	re, ok := v.patterns[expr]
	v.mu.RUnlock()
	if ok {
		return re, nil
	}
	// anchor the whole value
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.patterns[expr] = re
	v.mu.Unlock()
	return re, nil
}

// Results maps field names to their messages.
type Results map[string][]model.Message

func (r Results) add(name string, text string) {
	r[name] = append(r[name], model.Message{Type: model.MessageError, Text: text})
}

func nonEmpty(values []string) []string {
	var r []string
	for _, s := range values {
		if strings.TrimSpace(s) != "" {
			r = append(r, s)
		}
	}
	return r
}

// Validate checks data against every field of c.
// Read-only fields and values for unknown fields are ignored.
// Lenient validation skips required checks; it is used for rejections.
// Attachment names count as values for file fields.
func (v *Validator) Validate(c *model.Container, data map[string][]string, lenient bool) Results {
	results := make(Results)
	if c == nil || c.ReadOnly {
		return results
	}
	v.container(c, data, lenient, results)
	return results
}

func (v *Validator) container(c *model.Container, data map[string][]string, lenient bool, results Results) {
	if c.ReadOnly {
		return
	}
	for _, f := range c.Fields {
		if f == nil || f.ReadOnly {
			continue
		}
		v.field(f, nonEmpty(data[f.Name]), lenient, results)
	}
	for _, child := range c.Children {
		if child != nil {
			v.container(child, data, lenient, results)
		}
	}
}

func label(f *model.Field) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

func (v *Validator) field(f *model.Field, values []string, lenient bool, results Results) {
	if len(values) < 1 {
		if f.Required && !lenient {
			results.add(f.Name, fmt.Sprintf("%s is required", label(f)))
		}
		return
	}
	if f.Type == model.FieldFile {
		return
	}
	for _, value := range values {
		if n := utf8.RuneCountInString(value); f.MinLength > 0 && n < f.MinLength {
			results.add(f.Name, fmt.Sprintf("%s must be at least %d characters", label(f), f.MinLength))
		} else if f.MaxLength > 0 && n > f.MaxLength {
			results.add(f.Name, fmt.Sprintf("%s must be no more than %d characters", label(f), f.MaxLength))
		}
		if f.Pattern != "" {
			if re, err := v.pattern(f.Pattern); err != nil {
				results.add(f.Name, fmt.Sprintf("%s has an invalid pattern", label(f)))
			} else if !re.MatchString(value) {
				results.add(f.Name, fmt.Sprintf("%s is not in the expected format", label(f)))
			}
		}
		switch f.Type {
		case model.FieldEmail:
			if a, err := mail.ParseAddress(value); err != nil || a.Address != value {
				results.add(f.Name, fmt.Sprintf("%s must be an email address", label(f)))
			}
		case model.FieldNumber:
			n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				results.add(f.Name, fmt.Sprintf("%s must be a number", label(f)))
				break
			}
			if f.MinValue != nil && n < *f.MinValue {
				results.add(f.Name, fmt.Sprintf("%s must be at least %g", label(f), *f.MinValue))
			}
			if f.MaxValue != nil && n > *f.MaxValue {
				results.add(f.Name, fmt.Sprintf("%s must be no more than %g", label(f), *f.MaxValue))
			}
		}
		if len(f.Options) > 0 && !hasOption(f.Options, value) {
			results.add(f.Name, fmt.Sprintf("%s is not one of the allowed options", label(f)))
		}
	}
}

func hasOption(opts []model.Option, value string) bool {
	for _, o := range opts {
		if o.Value == value {
			return true
		}
	}
	return false
}
