package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/piecework/piecework/engine/storage"
	"github.com/piecework/piecework/log/logkeys"
	"github.com/piecework/piecework/model"

	"github.com/micromdm/nanolib/log"
)

const DefaultDuration = time.Minute * 5

// ProcessLister lists processes, including deleted ones.
type ProcessLister interface {
	RetrieveProcesses(ctx context.Context) ([]*model.Process, error)
}

// Worker polls storage on an interval and cancels the
// open tasks and instances of deleted processes.
type Worker struct {
	engine    *Engine
	processes ProcessLister
	logger    log.Logger

	// duration is the interval at which the worker will wake up to
	// continue polling the storage backend for data to take action on.
	duration time.Duration
}

type WorkerOption func(w *Worker)

func WithWorkerLogger(logger log.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithWorkerDuration configures the polling interval for the worker.
func WithWorkerDuration(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.duration = d
	}
}

func NewWorker(e *Engine, processes ProcessLister, opts ...WorkerOption) *Worker {
	w := &Worker{
		engine:    e,
		processes: processes,
		logger:    log.NopLogger,
		duration:  DefaultDuration,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func logAndError(err error, logger log.Logger, msg string) error {
	logger.Info(
		logkeys.Message, msg,
		logkeys.Error, err,
	)
	return fmt.Errorf("%s: %w", msg, err)
}

// RunOnce runs the processes of the worker and logs errors.
// It returns the number of cancelled instances.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	procs, err := w.processes.RetrieveProcesses(ctx)
	if err != nil {
		return 0, logAndError(err, w.logger, "retrieving processes")
	}
	var deleted []string
	for _, p := range procs {
		if p.Deleted {
			deleted = append(deleted, p.Key)
		}
	}
	if len(deleted) < 1 {
		return 0, nil
	}

	tasks, err := w.engine.SearchTasks(ctx, &storage.TaskCriteria{
		ProcessDefinitionKeys: deleted,
		Status:                model.StatusOpen,
	})
	if err != nil {
		return 0, logAndError(err, w.logger, "searching open tasks")
	}

	var cancelled int
	seen := make(map[string]struct{})
	for _, t := range tasks {
		if _, ok := seen[t.ProcessInstanceID]; ok {
			continue
		}
		seen[t.ProcessInstanceID] = struct{}{}
		logger := w.logger.With(
			logkeys.Message, "cancelling instance of deleted process",
			logkeys.ProcessKey, t.ProcessDefinitionKey,
			logkeys.InstanceID, t.ProcessInstanceID,
		)
		if err = w.engine.CancelInstance(ctx, t.ProcessInstanceID); err != nil {
			logger.Info(logkeys.Error, err)
			continue
		}
		logger.Debug()
		cancelled++
	}
	return cancelled, nil
}

// Run starts and runs the worker forever on an interval.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Debug(logkeys.Message, "starting worker", "duration", w.duration)

	ticker := time.NewTicker(w.duration)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
