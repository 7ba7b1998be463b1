package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/piecework/piecework/model"
	"github.com/piecework/piecework/process/storage/inmem"
)

func TestLoadAndSeed(t *testing.T) {
	c, err := Load("testdata/catalog.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 2, len(c.Processes); want != have {
		t.Fatalf("processes: want: %d, have: %d", want, have)
	}

	s := inmem.New()
	ctx := context.Background()
	if err = c.Seed(ctx, s, time.Now()); err != nil {
		t.Fatal(err)
	}

	p, err := s.RetrieveProcess(ctx, "feedback")
	if err != nil {
		t.Fatal(err)
	}
	if !p.AllowAnonymousSubmission {
		t.Error("expected anonymous submission to be allowed")
	}
	if want, have := "1", p.DeploymentID; want != have {
		t.Errorf("deployment id: want: %q, have: %q", want, have)
	}

	d, err := s.RetrieveDeployment(ctx, "feedback", "1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Editable() {
		t.Error("expected deployment to be published")
	}
	if want, have := "review", d.Activity("start").Transitions[model.ActionComplete]; want != have {
		t.Errorf("transition: want: %q, have: %q", want, have)
	}
	review := d.Activity("review").Action(model.ActionCreate)
	if want, have := model.DispositionRemote, review.Disposition.Type; want != have {
		t.Errorf("disposition: want: %q, have: %q", want, have)
	}
	if f := d.Activity("start").Action(model.ActionCreate).Container.Field("email"); f == nil || !f.Required {
		t.Error("expected required email field")
	}

	draft, err := s.RetrieveProcess(ctx, "draft")
	if err != nil {
		t.Fatal(err)
	}
	if draft.DeploymentID != "" {
		t.Errorf("unpublished draft should have no current deployment, have %q", draft.DeploymentID)
	}

	// seeding again is a no-op for published deployments
	if err = c.Seed(ctx, s, time.Now()); err != nil {
		t.Errorf("reseed: %v", err)
	}
}

func TestParseInvalid(t *testing.T) {
	for _, doc := range []string{
		"processes: [{name: nokey}]",
		"processes: [{key: a, deployments: [{id: '1', start_activity_key: missing}]}]",
		"processes: {",
	} {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("expected error parsing %q", doc)
		}
	}
}
