package form

import (
	"fmt"

	"github.com/piecework/piecework/model"
)

var editable = []model.ActionType{
	model.ActionValidate,
	model.ActionComplete,
	model.ActionReject,
	model.ActionAttach,
	model.ActionRemove,
	model.ActionSubCreate,
}

// transitions maps the action of a form request to the submission
// actions it accepts. Actions missing from the table are terminal.
var transitions = map[model.ActionType][]model.ActionType{
	model.ActionCreate:    editable,
	model.ActionValidate:  editable,
	model.ActionAttach:    editable,
	model.ActionRemove:    editable,
	model.ActionSubCreate: editable,
}

// anonymousAllowed reports whether an anonymous principal may take or view a.
func anonymousAllowed(a model.ActionType) bool {
	return a == model.ActionComplete || a == model.ActionReject
}

func has(actions []model.ActionType, a model.ActionType) bool {
	for _, v := range actions {
		if v == a {
			return true
		}
	}
	return false
}

// AllowedActions returns the submission actions a principal may take on a
// request with action current.
func AllowedActions(anonymous bool, current model.ActionType) []model.ActionType {
	var r []model.ActionType
	for _, a := range transitions[current] {
		if !anonymous || anonymousAllowed(a) {
			r = append(r, a)
		}
	}
	return r
}

// Permit checks that a principal may submit next against a request with action current.
func Permit(anonymous bool, current, next model.ActionType) error {
	if !next.Valid() {
		return &ForbiddenError{Message: fmt.Sprintf("action %q is not defined", next)}
	}
	if !has(transitions[current], next) {
		return &ForbiddenError{Message: fmt.Sprintf("action %s is not permitted on a %s request", next, current)}
	}
	if anonymous && !anonymousAllowed(next) {
		return &ForbiddenError{Message: fmt.Sprintf("anonymous principals may not %s", next)}
	}
	return nil
}

// Viewable checks that a principal may read back a request with action.
// Anonymous principals may only view confirmation (complete or reject) requests.
func Viewable(anonymous bool, action model.ActionType) error {
	if action == "" || action == model.ActionUndefined {
		return &ForbiddenError{Message: "request has no action"}
	}
	if anonymous && !anonymousAllowed(action) {
		return &ForbiddenError{Message: fmt.Sprintf("anonymous principals may not view %s requests", action)}
	}
	return nil
}
