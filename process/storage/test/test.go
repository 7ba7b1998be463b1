// Package test provides a conformance test for process storage backends.
package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/piecework/piecework/model"
	"github.com/piecework/piecework/process/storage"
)

func newDeployment(id, label string) *model.ProcessDeployment {
	return &model.ProcessDeployment{
		ID:               id,
		Label:            label,
		StartActivityKey: "start",
		Activities: map[string]*model.Activity{
			"start": {
				Key: "start",
				Actions: map[model.ActionType]*model.Action{
					model.ActionCreate: {Container: &model.Container{
						Fields: []*model.Field{{Name: "name", Label: label, Required: true}},
					}},
				},
			},
		},
	}
}

// TestProcessStorage runs the process storage tests against a new backend.
func TestProcessStorage(t *testing.T, newStorage func() storage.Storage) {
	s := newStorage()
	ctx := context.Background()

	_, err := s.RetrieveProcess(ctx, "demo")
	if !errors.Is(err, storage.ErrProcessNotFound) {
		t.Fatalf("expected ErrProcessNotFound, have: %v", err)
	}

	p := &model.Process{Key: "demo", Name: "Demo", AllowAnonymousSubmission: true}
	if err = s.StoreProcess(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err = s.StoreProcess(ctx, &model.Process{Key: "other"}); err != nil {
		t.Fatal(err)
	}

	procs, err := s.RetrieveProcesses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 2, len(procs); want != have {
		t.Fatalf("processes: want: %d, have: %d", want, have)
	}
	if want, have := "demo", procs[0].Key; want != have {
		t.Errorf("sort order: want: %s, have: %s", want, have)
	}

	_, err = s.RetrieveDeployment(ctx, "demo", "1")
	if !errors.Is(err, storage.ErrDeploymentNotFound) {
		t.Fatalf("expected ErrDeploymentNotFound, have: %v", err)
	}

	if err = s.StoreDeployment(ctx, "demo", &model.ProcessDeployment{ID: "bad"}); err == nil {
		t.Error("expected error storing invalid deployment")
	}

	d := newDeployment("1", "Name")
	if err = s.StoreDeployment(ctx, "demo", d); err != nil {
		t.Fatal(err)
	}

	// unpublished deployments are editable
	if err = s.StoreDeployment(ctx, "demo", newDeployment("1", "Your name")); err != nil {
		t.Fatal(err)
	}

	if err = s.PublishDeployment(ctx, "demo", "1", time.Now()); err != nil {
		t.Fatal(err)
	}

	d2, err := s.RetrieveDeployment(ctx, "demo", "1")
	if err != nil {
		t.Fatal(err)
	}
	if d2.Editable() {
		t.Error("published deployment should not be editable")
	}
	if want, have := "Your name", d2.Activity("start").Action(model.ActionCreate).Container.Field("name").Label; want != have {
		t.Errorf("label: want: %s, have: %s", want, have)
	}

	p2, err := s.RetrieveProcess(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if want, have := "1", p2.DeploymentID; want != have {
		t.Errorf("deployment id: want: %s, have: %s", want, have)
	}

	// identical definitions may be re-stored (e.g. reseeding)
	if err = s.StoreDeployment(ctx, "demo", newDeployment("1", "Your name")); err != nil {
		t.Errorf("re-storing identical published deployment: %v", err)
	}

	err = s.StoreDeployment(ctx, "demo", newDeployment("1", "Changed"))
	if !errors.Is(err, storage.ErrDeploymentPublished) {
		t.Errorf("expected ErrDeploymentPublished, have: %v", err)
	}

	// a new version is editable
	if err = s.StoreDeployment(ctx, "demo", newDeployment("2", "Changed")); err != nil {
		t.Fatal(err)
	}

	if err = s.DeleteProcess(ctx, "demo"); err != nil {
		t.Fatal(err)
	}
	p3, err := s.RetrieveProcess(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if !p3.Deleted {
		t.Error("expected process to be marked deleted")
	}

	if err = s.DeleteProcess(ctx, "nope"); !errors.Is(err, storage.ErrProcessNotFound) {
		t.Errorf("expected ErrProcessNotFound, have: %v", err)
	}
}
