// Package model defines the Piecework value types shared by storage, the form core, and HTTP handlers.
package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMissingProcessKey   = errors.New("missing process definition key")
	ErrMissingDeploymentID = errors.New("missing deployment id")
	ErrMissingStart        = errors.New("missing start activity")
	ErrMissingActivityKey  = errors.New("missing activity key")
	ErrMissingFieldName    = errors.New("missing field name")
)

// Process is a business process definition as seen by its users.
type Process struct {
	Key                      string `json:"key" yaml:"key"`
	Name                     string `json:"name,omitempty" yaml:"name"`
	Summary                  string `json:"summary,omitempty" yaml:"summary"`
	AllowAnonymousSubmission bool   `json:"allow_anonymous_submission,omitempty" yaml:"allow_anonymous_submission"`
	DeploymentID             string `json:"deployment_id,omitempty" yaml:"deployment_id"`
	Deleted                  bool   `json:"deleted,omitempty" yaml:"deleted"`
}

// Validate checks p for missing values.
func (p *Process) Validate() error {
	if p == nil || p.Key == "" {
		return ErrMissingProcessKey
	}
	return nil
}

// ProcessDeployment is a version of a process's activities and forms.
// Once published a deployment is no longer editable; changes require a new deployment.
type ProcessDeployment struct {
	ID               string               `json:"id" yaml:"id"`
	Version          int                  `json:"version,omitempty" yaml:"version"`
	Label            string               `json:"label,omitempty" yaml:"label"`
	StartActivityKey string               `json:"start_activity_key" yaml:"start_activity_key"`
	Activities       map[string]*Activity `json:"activities,omitempty" yaml:"activities"`
	Published        bool                 `json:"published,omitempty" yaml:"published"`
	PublishedAt      time.Time            `json:"published_at,omitempty" yaml:"published_at"`
}

// Editable reports whether the deployment may still be changed.
func (d *ProcessDeployment) Editable() bool {
	return d != nil && !d.Published
}

// Activity returns the named activity or nil.
func (d *ProcessDeployment) Activity(key string) *Activity {
	if d == nil || d.Activities == nil {
		return nil
	}
	return d.Activities[key]
}

// Validate checks d for missing values and dangling activity references.
func (d *ProcessDeployment) Validate() error {
	if d == nil || d.ID == "" {
		return ErrMissingDeploymentID
	}
	if d.StartActivityKey == "" || d.Activity(d.StartActivityKey) == nil {
		return ErrMissingStart
	}
	for key, a := range d.Activities {
		if a == nil {
			return fmt.Errorf("activity %s: %w", key, ErrMissingActivityKey)
		}
		for action, next := range a.Transitions {
			if next != "" && d.Activity(next) == nil {
				return fmt.Errorf("activity %s: %s transition to unknown activity %s", key, action, next)
			}
		}
		for _, action := range a.Actions {
			if action == nil {
				continue
			}
			for _, f := range action.Container.AllFields() {
				if f.Name == "" {
					return fmt.Errorf("activity %s: %w", key, ErrMissingFieldName)
				}
			}
		}
	}
	return nil
}

// Activity is a single step of a process: a start form or a user task.
type Activity struct {
	Key              string   `json:"key" yaml:"key"`
	Name             string   `json:"name,omitempty" yaml:"name"`
	AllowAttachments bool     `json:"allow_attachments,omitempty" yaml:"allow_attachments"`
	MaxAttachments   int      `json:"max_attachments,omitempty" yaml:"max_attachments"`
	Assignee         string   `json:"assignee,omitempty" yaml:"assignee"`
	CandidateGroups  []string `json:"candidate_groups,omitempty" yaml:"candidate_groups"`

	// Transitions map an action to the key of the next activity.
	// An empty (or missing) next activity ends the process instance.
	Transitions map[ActionType]string `json:"transitions,omitempty" yaml:"transitions"`

	// Actions configure the form presented for a request of a given action.
	Actions map[ActionType]*Action `json:"actions,omitempty" yaml:"actions"`
}

// Action returns the form configuration for t.
// Falls back to the create action when t is not configured.
func (a *Activity) Action(t ActionType) *Action {
	if a == nil || a.Actions == nil {
		return nil
	}
	if action, ok := a.Actions[t]; ok && action != nil {
		return action
	}
	return a.Actions[ActionCreate]
}

// Action is the form presented for a request of an action type.
type Action struct {
	Container   *Container  `json:"container,omitempty" yaml:"container"`
	Disposition Disposition `json:"disposition,omitempty" yaml:"disposition"`
}

// DispositionType says where a form is rendered.
type DispositionType string

const (
	// DispositionDefault renders the form in-process.
	DispositionDefault DispositionType = "default"
	// DispositionCustom serves page bytes fetched from an externally hosted UI.
	DispositionCustom DispositionType = "custom"
	// DispositionRemote redirects the browser to an external URL.
	DispositionRemote DispositionType = "remote"
)

// Disposition configures how a form is delivered to browsers.
type Disposition struct {
	Type     DispositionType `json:"type,omitempty" yaml:"type"`
	Location string          `json:"location,omitempty" yaml:"location"`
}

// Container is a (possibly nested) group of fields: a screen, section, or step.
type Container struct {
	ID       string       `json:"id,omitempty" yaml:"id"`
	Title    string       `json:"title,omitempty" yaml:"title"`
	ReadOnly bool         `json:"read_only,omitempty" yaml:"read_only"`
	Fields   []*Field     `json:"fields,omitempty" yaml:"fields"`
	Children []*Container `json:"children,omitempty" yaml:"children"`
}

// AllFields walks the container tree depth-first and returns every field.
func (c *Container) AllFields() []*Field {
	if c == nil {
		return nil
	}
	fields := append([]*Field{}, c.Fields...)
	for _, child := range c.Children {
		fields = append(fields, child.AllFields()...)
	}
	return fields
}

// Field returns the field named name or nil.
func (c *Container) Field(name string) *Field {
	for _, f := range c.AllFields() {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// FieldType is the input type of a field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldNumber   FieldType = "number"
	FieldEmail    FieldType = "email"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
	FieldFile     FieldType = "file"
	FieldDate     FieldType = "date"
)

// Field is a single form input.
type Field struct {
	ID         string    `json:"id,omitempty" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	Label      string    `json:"label,omitempty" yaml:"label"`
	Type       FieldType `json:"type,omitempty" yaml:"type"`
	Required   bool      `json:"required,omitempty" yaml:"required"`
	Restricted bool      `json:"restricted,omitempty" yaml:"restricted"`
	ReadOnly   bool      `json:"read_only,omitempty" yaml:"read_only"`
	Pattern    string    `json:"pattern,omitempty" yaml:"pattern"`
	MinLength  int       `json:"min_length,omitempty" yaml:"min_length"`
	MaxLength  int       `json:"max_length,omitempty" yaml:"max_length"`
	MinValue   *float64  `json:"min_value,omitempty" yaml:"min_value"`
	MaxValue   *float64  `json:"max_value,omitempty" yaml:"max_value"`
	Options    []Option  `json:"options,omitempty" yaml:"options"`
}

// Option is a choice of a select or checkbox field.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label,omitempty" yaml:"label"`
}
