// Package test provides a conformance test for task engine storage backends.
package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/piecework/piecework/engine/storage"
	"github.com/piecework/piecework/model"
)

func TestEngineStorage(t *testing.T, newStorage func() storage.Storage) {
	s := newStorage()
	ctx := context.Background()

	t.Run("instances", func(t *testing.T) {
		if _, err := s.RetrieveInstance(ctx, "i-none"); !errors.Is(err, storage.ErrInstanceNotFound) {
			t.Fatalf("expected ErrInstanceNotFound, have: %v", err)
		}
		if err := s.StoreInstance(ctx, &model.ProcessInstance{}); err == nil {
			t.Error("expected error storing instance without id")
		}
		i := &model.ProcessInstance{
			ID:                   "i-1",
			ProcessDefinitionKey: "demo",
			DeploymentID:         "1",
			Initiator:            "alice",
			Status:               model.StatusOpen,
			Data:                 map[string][]string{"name": {"Alice"}},
			StartTime:            time.Now().UTC(),
		}
		if err := s.StoreInstance(ctx, i); err != nil {
			t.Fatal(err)
		}
		i2, err := s.RetrieveInstance(ctx, "i-1")
		if err != nil {
			t.Fatal(err)
		}
		if want, have := "alice", i2.Initiator; want != have {
			t.Errorf("initiator: want: %s, have: %s", want, have)
		}
		if want, have := "Alice", i2.Data["name"][0]; want != have {
			t.Errorf("data: want: %s, have: %s", want, have)
		}
	})

	t.Run("tasks", func(t *testing.T) {
		if _, err := s.RetrieveTask(ctx, "t-none"); !errors.Is(err, storage.ErrTaskNotFound) {
			t.Fatalf("expected ErrTaskNotFound, have: %v", err)
		}
		if err := s.StoreTask(ctx, &model.Task{}); err == nil {
			t.Error("expected error storing task without id")
		}

		now := time.Now().UTC()
		tasks := []*model.Task{
			{ID: "t-1", ProcessInstanceID: "i-1", ProcessDefinitionKey: "demo", ActivityKey: "review", Assignee: "alice", Status: model.StatusOpen, StartTime: now},
			{ID: "t-2", ProcessInstanceID: "i-1", ProcessDefinitionKey: "demo", ActivityKey: "approve", CandidateGroups: []string{"approvers"}, Status: model.StatusOpen, StartTime: now.Add(time.Second)},
			{ID: "t-3", ProcessInstanceID: "i-2", ProcessDefinitionKey: "other", ActivityKey: "review", Assignee: "bob", Status: model.StatusComplete, StartTime: now.Add(2 * time.Second)},
		}
		for _, task := range tasks {
			if err := s.StoreTask(ctx, task); err != nil {
				t.Fatal(err)
			}
		}

		task, err := s.RetrieveTask(ctx, "t-2")
		if err != nil {
			t.Fatal(err)
		}
		if want, have := "approve", task.ActivityKey; want != have {
			t.Errorf("activity: want: %s, have: %s", want, have)
		}

		for _, tc := range []struct {
			name     string
			criteria *storage.TaskCriteria
			want     []string
		}{
			{"all", nil, []string{"t-1", "t-2", "t-3"}},
			{"process", &storage.TaskCriteria{ProcessDefinitionKeys: []string{"demo"}}, []string{"t-1", "t-2"}},
			{"instance", &storage.TaskCriteria{ProcessInstanceID: "i-2"}, []string{"t-3"}},
			{"open", &storage.TaskCriteria{Status: model.StatusOpen}, []string{"t-1", "t-2"}},
			{"assignee", &storage.TaskCriteria{Assignee: "alice"}, []string{"t-1"}},
			{"group", &storage.TaskCriteria{CandidateGroups: []string{"approvers"}}, []string{"t-2"}},
			{"assignee or group", &storage.TaskCriteria{Assignee: "alice", CandidateGroups: []string{"approvers"}}, []string{"t-1", "t-2"}},
			{"none", &storage.TaskCriteria{Assignee: "carol"}, nil},
		} {
			t.Run(tc.name, func(t *testing.T) {
				found, err := s.SearchTasks(ctx, tc.criteria)
				if err != nil {
					t.Fatal(err)
				}
				var have []string
				for _, task := range found {
					have = append(have, task.ID)
				}
				if len(have) != len(tc.want) {
					t.Fatalf("want: %v, have: %v", tc.want, have)
				}
				for i := range tc.want {
					if tc.want[i] != have[i] {
						t.Errorf("index %d: want: %s, have: %s", i, tc.want[i], have[i])
					}
				}
			})
		}

		// update
		task.Status = model.StatusComplete
		if err = s.StoreTask(ctx, task); err != nil {
			t.Fatal(err)
		}
		found, err := s.SearchTasks(ctx, &storage.TaskCriteria{Status: model.StatusOpen})
		if err != nil {
			t.Fatal(err)
		}
		if want, have := 1, len(found); want != have {
			t.Errorf("open tasks: want: %d, have: %d", want, have)
		}
	})
}
