package model

import "strings"

// ActionType is the transition trigger of a form request or submission.
type ActionType string

const (
	ActionCreate    ActionType = "create"
	ActionValidate  ActionType = "validate"
	ActionComplete  ActionType = "complete"
	ActionReject    ActionType = "reject"
	ActionAttach    ActionType = "attach"
	ActionRemove    ActionType = "remove"
	ActionSubCreate ActionType = "subcreate"
	ActionUndefined ActionType = "undefined"
)

// ActionTypes lists every defined action type.
var ActionTypes = []ActionType{
	ActionCreate,
	ActionValidate,
	ActionComplete,
	ActionReject,
	ActionAttach,
	ActionRemove,
	ActionSubCreate,
	ActionUndefined,
}

// ParseActionType converts s (case-insensitive) to an ActionType.
// Unknown values and the empty string are ActionUndefined.
func ParseActionType(s string) ActionType {
	a := ActionType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range ActionTypes {
		if a == t {
			return a
		}
	}
	return ActionUndefined
}

// Valid reports whether a is a defined, non-undefined action.
func (a ActionType) Valid() bool {
	return a != "" && ParseActionType(string(a)) == a && a != ActionUndefined
}

// Terminal reports whether a ends the step it was taken on.
func (a ActionType) Terminal() bool {
	return a == ActionComplete || a == ActionReject
}

func (a ActionType) String() string {
	return string(a)
}
