// Package http contains HTTP handlers for Piecework forms.
package http

import (
	"context"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	enginestorage "github.com/piecework/piecework/engine/storage"
	"github.com/piecework/piecework/form"
	"github.com/piecework/piecework/metrics"
	"github.com/piecework/piecework/model"

	"github.com/micromdm/nanolib/log"
)

// Headers set by a trusted fronting proxy to identify the principal.
const (
	HeaderUser   = "X-Piecework-User"
	HeaderGroups = "X-Piecework-Groups"
)

// DefaultMaxMemory is the multipart memory limit before uploads spill to disk.
const DefaultMaxMemory = 32 << 20

// Dispatcher is the form core consumed by the handlers.
type Dispatcher interface {
	StartForm(ctx context.Context, user *model.User, key string, details *model.RequestDetails) (*model.Form, error)
	RequestForm(ctx context.Context, user *model.User, key, requestID string) (*model.Form, error)
	TaskForm(ctx context.Context, user *model.User, key, taskID string, details *model.RequestDetails) (*model.Form, error)
	SubmitForm(ctx context.Context, user *model.User, key, requestID string, input *form.Input) (*form.SubmissionCommandResponse, error)
	ValidateForm(ctx context.Context, user *model.User, key, requestID string, input *form.Input) (*model.Validation, error)
	ValidationForm(ctx context.Context, user *model.User, key, validationID string) (*model.Form, error)
	Request(ctx context.Context, user *model.User, key, requestID string) (*model.FormRequest, error)
	Recover(ctx context.Context, user *model.User, req *model.FormRequest, err error) (*model.Form, error)
	Search(ctx context.Context, user *model.User, key string, c *enginestorage.TaskCriteria) ([]*model.Task, error)
	Attachment(ctx context.Context, user *model.User, key, requestID, attachmentID string) (*model.Attachment, io.ReadCloser, error)
}

// Mux can register HTTP handlers.
// Ostensibly this supports flow router.
type Mux interface {
	// Handle registers the handler for the given pattern.
	Handle(pattern string, handler http.Handler, methods ...string)
}

// UserFunc resolves the principal of r. A nil or empty user is anonymous.
type UserFunc func(r *http.Request) *model.User

// UserFromHeaders reads the principal from the HeaderUser and
// comma-separated HeaderGroups headers.
func UserFromHeaders(r *http.Request) *model.User {
	id := strings.TrimSpace(r.Header.Get(HeaderUser))
	if id == "" {
		return model.Anonymous
	}
	u := &model.User{ID: id}
	for _, g := range strings.Split(r.Header.Get(HeaderGroups), ",") {
		if g = strings.TrimSpace(g); g != "" {
			u.Groups = append(u.Groups, g)
		}
	}
	return u
}

// Forms serves form requests.
type Forms struct {
	d            Dispatcher
	logger       log.Logger
	user         UserFunc
	maxRedirects int
	maxMemory    int64
	client       *http.Client
	templates    *template.Template
	metrics      *metrics.Metrics
}

// Option configures the form handlers.
type Option func(*Forms)

// WithUserFunc sets how the principal is resolved from requests.
func WithUserFunc(f UserFunc) Option {
	return func(h *Forms) {
		h.user = f
	}
}

// WithMaxRedirects limits redirects to remote forms.
func WithMaxRedirects(n int) Option {
	return func(h *Forms) {
		h.maxRedirects = n
	}
}

// WithMaxMemory sets the multipart memory limit.
func WithMaxMemory(n int64) Option {
	return func(h *Forms) {
		h.maxMemory = n
	}
}

// WithHTTPClient sets the client used to fetch custom form pages.
func WithHTTPClient(c *http.Client) Option {
	return func(h *Forms) {
		h.client = c
	}
}

// WithMetrics counts search exports in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Forms) {
		h.metrics = m
	}
}

// New creates the form handlers.
func New(d Dispatcher, logger log.Logger, opts ...Option) *Forms {
	h := &Forms{
		d:            d,
		logger:       logger,
		user:         UserFromHeaders,
		maxRedirects: form.DefaultMaxRedirects,
		maxMemory:    DefaultMaxMemory,
		client:       &http.Client{Timeout: 10 * time.Second},
		templates:    templates,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Forms) principal(r *http.Request) *model.User {
	if u := h.user(r); u != nil {
		return u
	}
	return model.Anonymous
}

// HandleForms registers the form handlers into mux.
// Paths are prepended with prefix. Routes are matched in order so the
// fixed path segments are registered ahead of request IDs.
func HandleForms(prefix string, mux Mux, logger log.Logger, d Dispatcher, opts ...Option) {
	h := New(d, logger, opts...)
	mux.Handle(
		prefix+"/:process/task/:taskId",
		h.TaskFormHandler(logger.With("handler", "task form")),
		"GET",
	)
	mux.Handle(
		prefix+"/:process/validation/:validationId",
		h.ValidationFormHandler(logger.With("handler", "validation form")),
		"GET",
	)
	mux.Handle(
		prefix+"/:process/search",
		h.SearchHandler(logger.With("handler", "search")),
		"GET",
	)
	mux.Handle(
		prefix+"/:process/:requestId/validate",
		h.ValidateHandler(logger.With("handler", "validate")),
		"POST",
	)
	mux.Handle(
		prefix+"/:process/:requestId/attachment",
		h.SubmitHandler(logger.With("handler", "attach"), model.ActionAttach),
		"POST",
	)
	mux.Handle(
		prefix+"/:process/:requestId/attachment/:attachmentId",
		h.AttachmentHandler(logger.With("handler", "get attachment")),
		"GET",
	)
	mux.Handle(
		prefix+"/:process/:requestId/attachment/:attachmentId",
		h.RemoveAttachmentHandler(logger.With("handler", "remove attachment")),
		"DELETE",
	)
	mux.Handle(
		prefix+"/:process/:requestId",
		h.RequestFormHandler(logger.With("handler", "request form")),
		"GET",
	)
	mux.Handle(
		prefix+"/:process/:requestId",
		h.SubmitHandler(logger.With("handler", "submit"), ""),
		"POST",
	)
	mux.Handle(
		prefix+"/:process",
		h.StartFormHandler(logger.With("handler", "start form")),
		"GET",
	)
}
