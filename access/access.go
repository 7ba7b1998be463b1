// Package access tracks who accesses form requests and raises alarms on suspicious access.
package access

import (
	"context"

	"github.com/piecework/piecework/log/logkeys"
	"github.com/piecework/piecework/metrics"
	"github.com/piecework/piecework/model"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

// Tracker logs form access and alarms.
type Tracker struct {
	logger  log.Logger
	metrics *metrics.Metrics
}

// Option configures the tracker.
type Option func(*Tracker)

// WithLogger sets the tracker logger.
func WithLogger(logger log.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithMetrics counts alarms in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

func New(opts ...Option) *Tracker {
	t := &Tracker{logger: log.NopLogger}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track records that u accessed the form request r.
func (t *Tracker) Track(ctx context.Context, r *model.FormRequest, u *model.User) {
	if r == nil {
		return
	}
	ctxlog.Logger(ctx, t.logger).Debug(
		logkeys.Message, "form access",
		logkeys.RequestID, r.RequestID,
		logkeys.ProcessKey, r.ProcessDefinitionKey,
		logkeys.TaskID, r.TaskID,
		logkeys.Action, r.Action,
		logkeys.Principal, u.UserID(),
		logkeys.Anonymous, u.IsAnonymous(),
	)
}

// Alarm logs message with severity for u.
func (t *Tracker) Alarm(ctx context.Context, severity, message string, u *model.User) {
	ctxlog.Logger(ctx, t.logger).Info(
		logkeys.Message, message,
		logkeys.Alarm, severity,
		logkeys.Principal, u.UserID(),
		logkeys.Anonymous, u.IsAnonymous(),
	)
	if t.metrics != nil {
		t.metrics.Alarms.WithLabelValues(severity).Inc()
	}
}
