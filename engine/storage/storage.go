// Package storage defines types and interfaces for task engine storage backends.
package storage

import (
	"context"
	"errors"
	"sort"

	"github.com/piecework/piecework/model"
)

var (
	ErrInstanceNotFound = errors.New("process instance not found")
	ErrTaskNotFound     = errors.New("task not found")

	ErrMissingInstanceID = errors.New("missing process instance id")
	ErrMissingTaskID     = errors.New("missing task id")
)

// TaskCriteria selects tasks.
// Zero-valued fields match every task.
type TaskCriteria struct {
	ProcessDefinitionKeys []string         `json:"process_definition_keys,omitempty"`
	ProcessInstanceID     string           `json:"process_instance_id,omitempty"`
	Status                model.TaskStatus `json:"status,omitempty"`

	// Assignee and CandidateGroups match tasks assigned to the
	// assignee or offered to any of the groups.
	Assignee        string   `json:"assignee,omitempty"`
	CandidateGroups []string `json:"candidate_groups,omitempty"`
}

func contains(s []string, v string) bool {
	for _, sv := range s {
		if sv == v {
			return true
		}
	}
	return false
}

// Match reports whether t is selected by c.
func (c *TaskCriteria) Match(t *model.Task) bool {
	if t == nil {
		return false
	}
	if c == nil {
		return true
	}
	if len(c.ProcessDefinitionKeys) > 0 && !contains(c.ProcessDefinitionKeys, t.ProcessDefinitionKey) {
		return false
	}
	if c.ProcessInstanceID != "" && c.ProcessInstanceID != t.ProcessInstanceID {
		return false
	}
	if c.Status != "" && c.Status != t.Status {
		return false
	}
	if c.Assignee == "" && len(c.CandidateGroups) < 1 {
		return true
	}
	if c.Assignee != "" && t.Assignee == c.Assignee {
		return true
	}
	if t.Assignee == "" {
		for _, g := range t.CandidateGroups {
			if contains(c.CandidateGroups, g) {
				return true
			}
		}
	}
	return false
}

// SortTasks orders tasks by start time then ID.
func SortTasks(tasks []*model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].StartTime.Equal(tasks[j].StartTime) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].StartTime.Before(tasks[j].StartTime)
	})
}

// ReadStorage retrieves process instances and tasks.
type ReadStorage interface {
	// RetrieveInstance returns ErrInstanceNotFound for unknown ids.
	RetrieveInstance(ctx context.Context, id string) (*model.ProcessInstance, error)

	// RetrieveTask returns ErrTaskNotFound for unknown ids.
	RetrieveTask(ctx context.Context, id string) (*model.Task, error)

	// SearchTasks returns the tasks matching c sorted with SortTasks.
	SearchTasks(ctx context.Context, c *TaskCriteria) ([]*model.Task, error)
}

// Storage stores process instances and tasks.
type Storage interface {
	ReadStorage
	StoreInstance(ctx context.Context, i *model.ProcessInstance) error
	StoreTask(ctx context.Context, t *model.Task) error
}
