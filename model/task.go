package model

import "time"

// TaskStatus is the lifecycle status of a task or process instance.
type TaskStatus string

const (
	StatusOpen      TaskStatus = "open"
	StatusComplete  TaskStatus = "complete"
	StatusRejected  TaskStatus = "rejected"
	StatusCancelled TaskStatus = "cancelled"
)

// Task is a user task of a running process instance.
type Task struct {
	ID                   string     `json:"id"`
	ProcessInstanceID    string     `json:"process_instance_id"`
	ProcessDefinitionKey string     `json:"process_definition_key"`
	DeploymentID         string     `json:"deployment_id,omitempty"`
	ActivityKey          string     `json:"activity_key"`
	Name                 string     `json:"name,omitempty"`
	Assignee             string     `json:"assignee,omitempty"`
	CandidateGroups      []string   `json:"candidate_groups,omitempty"`
	ParentTaskID         string     `json:"parent_task_id,omitempty"`
	Status               TaskStatus `json:"status"`
	StartTime            time.Time  `json:"start_time"`
	EndTime              time.Time  `json:"end_time,omitempty"`
}

// Open reports whether the task can still be acted on.
func (t *Task) Open() bool {
	return t != nil && t.Status == StatusOpen
}

// Actionable reports whether u may act on the task.
// The task must be open and either assigned to u or offered to one of u's groups.
func (t *Task) Actionable(u *User) bool {
	if !t.Open() || u.IsAnonymous() {
		return false
	}
	if t.Assignee != "" {
		return t.Assignee == u.ID
	}
	return u.InGroup(t.CandidateGroups...)
}

// ProcessInstance is a running (or finished) execution of a process deployment.
type ProcessInstance struct {
	ID                   string              `json:"id"`
	ProcessDefinitionKey string              `json:"process_definition_key"`
	DeploymentID         string              `json:"deployment_id"`
	Initiator            string              `json:"initiator,omitempty"`
	Status               TaskStatus          `json:"status"`
	Data                 map[string][]string `json:"data,omitempty"`
	StartTime            time.Time           `json:"start_time"`
	EndTime              time.Time           `json:"end_time,omitempty"`
}
