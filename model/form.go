package model

// Form is the rendering result for a form request.
// It is a view over a deployment, a request, and any validation; it is never stored.
type Form struct {
	RequestID            string               `json:"request_id"`
	ProcessDefinitionKey string               `json:"process_definition_key"`
	ProcessName          string               `json:"process_name,omitempty"`
	Action               ActionType           `json:"action"`
	ActivityKey          string               `json:"activity_key,omitempty"`
	ActivityName         string               `json:"activity_name,omitempty"`
	Container            *Container           `json:"container,omitempty"`
	Task                 *Task                `json:"task,omitempty"`
	Data                 map[string][]string  `json:"data,omitempty"`
	ValidationID         string               `json:"validation_id,omitempty"`
	Results              map[string][]Message `json:"results,omitempty"`
	Attachments          []*Attachment        `json:"attachments,omitempty"`
	AllowAttachments     bool                 `json:"allow_attachments,omitempty"`
	Explanation          *Explanation         `json:"explanation,omitempty"`
	Disposition          Disposition          `json:"disposition"`
	Anonymous            bool                 `json:"anonymous,omitempty"`
	ReadOnly             bool                 `json:"read_only,omitempty"`
	Done                 bool                 `json:"done,omitempty"`
	AllowedActions       []ActionType         `json:"allowed_actions,omitempty"`
	Links                map[string]string    `json:"links,omitempty"`
}
