package http

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"

	"github.com/piecework/piecework/form"
	phttp "github.com/piecework/piecework/http"
	"github.com/piecework/piecework/http/api"
	"github.com/piecework/piecework/log/logkeys"
	"github.com/piecework/piecework/model"

	"github.com/micromdm/nanolib/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"scope": newScope,
	"field": newFieldView,
}).ParseFS(templateFS, "templates/*.html"))

type scope struct {
	Form      *model.Form
	Container *model.Container
	ReadOnly  bool
}

func newScope(f *model.Form, c *model.Container, readOnly bool) scope {
	return scope{Form: f, Container: c, ReadOnly: readOnly || (c != nil && c.ReadOnly)}
}

type fieldView struct {
	Field    *model.Field
	Values   []string
	Messages []model.Message
	ReadOnly bool
}

func newFieldView(f *model.Form, fld *model.Field, readOnly bool) fieldView {
	return fieldView{
		Field:    fld,
		Values:   f.Data[fld.Name],
		Messages: f.Results[fld.Name],
		ReadOnly: readOnly || fld.ReadOnly,
	}
}

// Value is the first submitted value of the field.
func (v fieldView) Value() string {
	if len(v.Values) > 0 {
		return v.Values[0]
	}
	return ""
}

// Selected reports whether option was submitted.
func (v fieldView) Selected(option string) bool {
	for _, s := range v.Values {
		if s == option {
			return true
		}
	}
	return false
}

// InputType is the HTML input type of the field.
func (v fieldView) InputType() string {
	switch v.Field.Type {
	case model.FieldTextarea, model.FieldSelect, model.FieldCheckbox,
		model.FieldNumber, model.FieldEmail, model.FieldDate, model.FieldFile:
		return string(v.Field.Type)
	}
	return "text"
}

// publicError hides the details of internal failures from clients.
func publicError(err error) error {
	if form.StatusCode(err) == http.StatusInternalServerError {
		return errors.New(http.StatusText(http.StatusInternalServerError))
	}
	return err
}

// writeError writes err in the negotiated media type.
// BadRequest errors carrying a validation include it as the JSON detail.
func (h *Forms) writeError(w http.ResponseWriter, r *http.Request, logger log.Logger, err error) {
	code := form.StatusCode(err)
	logger.Info(logkeys.Message, "form request", logkeys.StatusCode, code, logkeys.Error, err)
	if phttp.Negotiate(r, phttp.MediaTypeHTML, phttp.MediaTypeJSON) == phttp.MediaTypeJSON {
		if v := form.ValidationOf(err); v != nil {
			api.JSONErrorDetail(w, err, code, v)
			return
		}
		api.JSONError(w, publicError(err), code)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := h.templates.ExecuteTemplate(w, "error", struct {
		Status  string
		Message string
	}{
		Status:  fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Message: publicError(err).Error(),
	}); err != nil {
		logger.Info(logkeys.Message, "rendering error page", logkeys.Error, err)
	}
}

// count is the number of remote redirects already taken for r.
func count(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("count"))
	return n
}

// writeForm delivers f as decided by its disposition.
func (h *Forms) writeForm(w http.ResponseWriter, r *http.Request, logger log.Logger, f *model.Form) {
	mediaType := phttp.Negotiate(r, phttp.MediaTypeHTML, phttp.MediaTypeJSON)
	resp := form.Decide(f, mediaType, count(r), h.maxRedirects)
	logger = logger.With(
		logkeys.RequestID, f.RequestID,
		logkeys.Disposition, resp.Kind.String(),
	)
	switch resp.Kind {
	case form.Redirect:
		logger.Debug(logkeys.Message, "redirecting to remote form")
		http.Redirect(w, r, resp.Location, http.StatusSeeOther)
		return
	case form.Custom:
		if err := h.writeCustom(w, r, resp.Location); err != nil {
			logger.Info(logkeys.Message, "fetching custom form", logkeys.Error, err)
		} else {
			return
		}
	}
	if mediaType == phttp.MediaTypeJSON {
		if err := api.JSON(w, f, 0); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "form", f); err != nil {
		logger.Info(logkeys.Message, "rendering form", logkeys.Error, err)
	}
}

// writeCustom serves the page at location.
// Nothing is written to w when an error is returned.
func (h *Forms) writeCustom(w http.ResponseWriter, r *http.Request, location string) error {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, location, nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("custom form status: %s", resp.Status)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "text/html; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	io.Copy(w, resp.Body)
	return nil
}
