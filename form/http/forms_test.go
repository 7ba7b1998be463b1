package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/piecework/piecework/access"
	"github.com/piecework/piecework/attachment"
	attachmentinmem "github.com/piecework/piecework/attachment/storage/inmem"
	"github.com/piecework/piecework/engine"
	engineinmem "github.com/piecework/piecework/engine/storage/inmem"
	"github.com/piecework/piecework/export"
	"github.com/piecework/piecework/form"
	"github.com/piecework/piecework/form/storage/inmem"
	"github.com/piecework/piecework/metrics"
	"github.com/piecework/piecework/model"
	"github.com/piecework/piecework/process/cache"
	processinmem "github.com/piecework/piecework/process/storage/inmem"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeployment(disposition model.Disposition) *model.ProcessDeployment {
	return &model.ProcessDeployment{
		ID:               "1",
		StartActivityKey: "start",
		Activities: map[string]*model.Activity{
			"start": {
				Key:              "start",
				AllowAttachments: true,
				Transitions:      map[model.ActionType]string{model.ActionComplete: "review"},
				Actions: map[model.ActionType]*model.Action{
					model.ActionCreate: {
						Container: &model.Container{Fields: []*model.Field{
							{Name: "name", Required: true},
						}},
						Disposition: disposition,
					},
				},
			},
			"review": {
				Key:             "review",
				CandidateGroups: []string{"reviewers"},
			},
		},
	}
}

type server struct {
	mux     *flow.Mux
	metrics *metrics.Metrics
}

func newServer(t *testing.T, disposition model.Disposition) *server {
	t.Helper()
	ctx := context.Background()
	processes := processinmem.New()
	require.NoError(t, processes.StoreProcess(ctx, &model.Process{Key: "demo", Name: "Demo", AllowAnonymousSubmission: true}))
	require.NoError(t, processes.StoreDeployment(ctx, "demo", testDeployment(disposition)))
	require.NoError(t, processes.PublishDeployment(ctx, "demo", "1", time.Now()))

	m := metrics.New()
	content := attachmentinmem.New()
	d := form.New(
		cache.New(processes, 0),
		inmem.New(),
		engine.New(engineinmem.New()),
		form.WithAttachments(attachment.New(content, content)),
		form.WithAccessTracker(access.New(access.WithMetrics(m))),
		form.WithMetrics(m),
	)
	s := &server{mux: flow.New(), metrics: m}
	HandleForms(form.DefaultPrefix, s.mux, log.NopLogger, d, WithMetrics(m))
	return s
}

func (s *server) do(r *http.Request, user string, accept string) *httptest.ResponseRecorder {
	if user != "" {
		r.Header.Set(HeaderUser, user)
	}
	if user == "bob" {
		r.Header.Set(HeaderGroups, "staff, reviewers")
	}
	if accept != "" {
		r.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, r)
	return rec
}

func decodeForm(t *testing.T, rec *httptest.ResponseRecorder) *model.Form {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	f := new(model.Form)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(f))
	return f
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func submitJSON(s *server, t *testing.T, user, path string, data map[string][]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest("POST", path, jsonBody(t, map[string]interface{}{"data": data}))
	r.Header.Set("Content-Type", "application/json")
	return s.do(r, user, "application/json")
}

func TestUserFromHeaders(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.True(t, UserFromHeaders(r).IsAnonymous())

	r.Header.Set(HeaderUser, "bob")
	r.Header.Set(HeaderGroups, "a, b,,c")
	assert.Equal(t, &model.User{ID: "bob", Groups: []string{"a", "b", "c"}}, UserFromHeaders(r))
}

func TestSubmitJSON(t *testing.T) {
	s := newServer(t, model.Disposition{})

	start := decodeForm(t, s.do(httptest.NewRequest("GET", "/form/demo", nil), "alice", "application/json"))
	assert.Equal(t, model.ActionCreate, start.Action)
	path := "/form/demo/" + start.RequestID

	rec := submitJSON(s, t, "alice", path, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Err    string            `json:"error"`
		Detail *model.Validation `json:"detail"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.Detail)
	assert.Equal(t, "name is required", body.Detail.Results["name"][0].Text)

	next := decodeForm(t, submitJSON(s, t, "alice", path, map[string][]string{"name": {"Alice"}}))
	assert.Equal(t, model.ActionComplete, next.Action)
	assert.True(t, next.Done)
	assert.Equal(t, []string{"Alice"}, next.Data["name"])

	rec = submitJSON(s, t, "alice", path, map[string][]string{"name": {"Alice"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = submitJSON(s, t, "alice", "/form/demo/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Dispatched.WithLabelValues("complete", "ok")))
}

func TestSubmitHTMLRecovers(t *testing.T) {
	s := newServer(t, model.Disposition{})

	start := decodeForm(t, s.do(httptest.NewRequest("GET", "/form/demo", nil), "alice", "application/json"))

	r := httptest.NewRequest("POST", "/form/demo/"+start.RequestID, strings.NewReader(url.Values{"name": {""}}.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := s.do(r, "alice", "text/html")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "name is required")
	assert.NotContains(t, rec.Body.String(), "/form/demo/"+start.RequestID+"\"", "re-rendered as a new request")

	r = httptest.NewRequest("POST", "/form/demo/"+start.RequestID, strings.NewReader(url.Values{"name": {"Alice"}}.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = s.do(r, "alice", "text/html")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/form/demo/"))
}

func TestValidate(t *testing.T) {
	s := newServer(t, model.Disposition{})
	start := decodeForm(t, s.do(httptest.NewRequest("GET", "/form/demo", nil), "alice", "application/json"))

	rec := submitJSON(s, t, "alice", "/form/demo/"+start.RequestID+"/validate", map[string][]string{"name": {"Alice"}})
	require.Equal(t, http.StatusOK, rec.Code)
	v := new(model.Validation)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
	assert.True(t, v.Valid())

	rec = submitJSON(s, t, "alice", "/form/demo/"+start.RequestID+"/validate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	again := decodeForm(t, s.do(httptest.NewRequest("GET", "/form/demo/"+start.RequestID, nil), "alice", "application/json"))
	assert.Equal(t, model.ActionCreate, again.Action)
}

func TestAnonymousTaskForm(t *testing.T) {
	s := newServer(t, model.Disposition{})

	rec := s.do(httptest.NewRequest("GET", "/form/demo/task/t1", nil), "", "application/json")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Alarms.WithLabelValues(form.AlarmUrgent)))

	rec = s.do(httptest.NewRequest("GET", "/form/demo/search", nil), "", "application/json")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(httptest.NewRequest("GET", "/form/demo/task/t1", nil), "", "text/html")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "403 Forbidden")
}

func TestTaskFormAndSearch(t *testing.T) {
	s := newServer(t, model.Disposition{})
	start := decodeForm(t, s.do(httptest.NewRequest("GET", "/form/demo", nil), "alice", "application/json"))
	submitJSON(s, t, "alice", "/form/demo/"+start.RequestID, map[string][]string{"name": {"Alice"}})

	rec := s.do(httptest.NewRequest("GET", "/form/demo/search", nil), "bob", "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []*model.Task
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tasks))
	require.Len(t, tasks, 1)

	tf := decodeForm(t, s.do(httptest.NewRequest("GET", "/form/demo/task/"+tasks[0].ID, nil), "bob", "application/json"))
	assert.Equal(t, "review", tf.ActivityKey)

	rec = s.do(httptest.NewRequest("GET", "/form/demo/search", nil), "bob", "text/csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), strings.Join(export.Header, ",")))
	assert.Contains(t, rec.Body.String(), tasks[0].ID)

	rec = s.do(httptest.NewRequest("GET", "/form/demo/search", nil), "bob", "application/vnd.ms-excel")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PK", rec.Body.String()[:2], "xlsx is a zip archive")

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Exports.WithLabelValues("text/csv")))
}

func TestAttachments(t *testing.T) {
	s := newServer(t, model.Disposition{})
	start := decodeForm(t, s.do(httptest.NewRequest("GET", "/form/demo", nil), "alice", "application/json"))
	path := "/form/demo/" + start.RequestID

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	fw.Write([]byte("hello"))
	require.NoError(t, mw.Close())

	r := httptest.NewRequest("POST", path+"/attachment", body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	f := decodeForm(t, s.do(r, "alice", "application/json"))
	require.Len(t, f.Attachments, 1)
	a := f.Attachments[0]
	assert.Equal(t, "notes.txt", a.Name)

	rec := s.do(httptest.NewRequest("GET", path+"/attachment/"+a.ID, nil), "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "notes.txt")

	rec = s.do(httptest.NewRequest("GET", path+"/attachment/"+a.ID, nil), "carol", "application/json")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(httptest.NewRequest("DELETE", path+"/attachment/"+a.ID, nil), "alice", "application/json")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(httptest.NewRequest("GET", path+"/attachment/"+a.ID, nil), "alice", "application/json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoteDisposition(t *testing.T) {
	s := newServer(t, model.Disposition{Type: model.DispositionRemote, Location: "https://forms.example.com/apply"})

	rec := s.do(httptest.NewRequest("GET", "/form/demo", nil), "alice", "text/html")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "forms.example.com", location.Host)
	assert.Equal(t, "1", location.Query().Get("count"))
	requestID := location.Query().Get("requestId")
	require.NotEmpty(t, requestID)

	rec = s.do(httptest.NewRequest("GET", "/form/demo/"+requestID+"?count=3", nil), "alice", "text/html")
	assert.Equal(t, http.StatusOK, rec.Code, "redirect limit reached")

	rec = s.do(httptest.NewRequest("GET", "/form/demo/"+requestID, nil), "alice", "application/json")
	assert.Equal(t, http.StatusOK, rec.Code, "json is never redirected")
}

func TestCustomDisposition(t *testing.T) {
	ui := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>custom</html>"))
	}))
	defer ui.Close()
	s := newServer(t, model.Disposition{Type: model.DispositionCustom, Location: ui.URL})

	rec := s.do(httptest.NewRequest("GET", "/form/demo", nil), "alice", "text/html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>custom</html>", rec.Body.String())
}
