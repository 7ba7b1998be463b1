package form

import (
	"net/url"
	"path"

	"github.com/piecework/piecework/model"
)

// DefaultPrefix is the path prefix of the form HTTP endpoints.
const DefaultPrefix = "/form"

// Factory builds forms from resolved form requests.
type Factory struct {
	prefix string
}

// NewFactory creates a form factory linking to endpoints under prefix.
func NewFactory(prefix string) *Factory {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Factory{prefix: prefix}
}

func (f *Factory) link(elem ...string) string {
	escaped := make([]string, len(elem))
	for i, e := range elem {
		escaped[i] = url.PathEscape(e)
	}
	return path.Join(append([]string{f.prefix}, escaped...)...)
}

// unrestricted drops values of restricted fields and fields of other forms.
func unrestricted(c *model.Container, data map[string][]string) map[string][]string {
	if len(data) < 1 {
		return nil
	}
	r := make(map[string][]string)
	for k, v := range data {
		if fld := c.Field(k); fld != nil && !fld.Restricted {
			r[k] = v
		}
	}
	return r
}

// overlay returns base with the values of top replacing its own.
func overlay(base, top map[string][]string) map[string][]string {
	if len(top) < 1 {
		return base
	}
	r := make(map[string][]string, len(base)+len(top))
	for k, v := range base {
		r[k] = v
	}
	for k, v := range top {
		r[k] = v
	}
	return r
}

// Form builds the form for t.Request.
// Data, overlaid with the values and results of v, is echoed into the form
// except for restricted fields.
// Confirmation (complete or reject) requests build read-only, done forms.
func (f *Factory) Form(t *Target, data map[string][]string, v *model.Validation, explanation *model.Explanation, attachments []*model.Attachment) *model.Form {
	req := t.Request
	form := &model.Form{
		RequestID:            req.RequestID,
		ProcessDefinitionKey: req.ProcessDefinitionKey,
		Action:               req.Action,
		ActivityKey:          req.ActivityKey,
		Task:                 t.Task,
		Anonymous:            t.User.IsAnonymous(),
		Explanation:          explanation,
		Attachments:          attachments,
		AllowedActions:       AllowedActions(t.User.IsAnonymous(), req.Action),
		Disposition:          model.Disposition{Type: model.DispositionDefault},
	}
	if form.Explanation == nil {
		form.Explanation = req.Explanation
	}
	if t.Process != nil {
		form.ProcessName = t.Process.Name
	}
	if t.Activity != nil {
		form.ActivityName = t.Activity.Name
		form.AllowAttachments = t.Activity.AllowAttachments
		if action := t.Activity.Action(req.Action); action != nil {
			form.Container = action.Container
			if action.Disposition.Type != "" {
				form.Disposition = action.Disposition
			}
		}
	}
	if req.Action.Terminal() {
		form.ReadOnly = true
		form.Done = true
		form.AllowAttachments = false
	} else if form.Container != nil && form.Container.ReadOnly {
		form.ReadOnly = true
	}
	if v != nil {
		form.ValidationID = v.ID
		form.Results = v.Results
		data = overlay(data, v.Data)
	}
	form.Data = unrestricted(form.Container, data)

	if !form.Done {
		form.Links = map[string]string{
			"self":     f.link(req.ProcessDefinitionKey, req.RequestID),
			"submit":   f.link(req.ProcessDefinitionKey, req.RequestID),
			"validate": f.link(req.ProcessDefinitionKey, req.RequestID, "validate"),
		}
		if form.AllowAttachments {
			form.Links["attachment"] = f.link(req.ProcessDefinitionKey, req.RequestID, "attachment")
		}
	} else {
		form.Links = map[string]string{
			"self": f.link(req.ProcessDefinitionKey, req.RequestID),
		}
	}
	return form
}
