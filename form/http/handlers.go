package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	enginehttp "github.com/piecework/piecework/engine/http"
	"github.com/piecework/piecework/export"
	"github.com/piecework/piecework/form"
	phttp "github.com/piecework/piecework/http"
	"github.com/piecework/piecework/http/api"
	"github.com/piecework/piecework/log/logkeys"
	"github.com/piecework/piecework/model"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

var ErrNoProcess = errors.New("no process key provided")

// StartFormHandler issues a new request for the start form of a process.
func (h *Forms) StartFormHandler(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := flow.Param(r.Context(), "process")
		logger := ctxlog.Logger(r.Context(), logger).With(logkeys.ProcessKey, key)
		if key == "" {
			h.writeError(w, r, logger, &form.BadRequestError{Message: ErrNoProcess.Error()})
			return
		}
		f, err := h.d.StartForm(r.Context(), h.principal(r), key, Details(r))
		if err != nil {
			h.writeError(w, r, logger, err)
			return
		}
		h.writeForm(w, r, logger, f)
	}
}

// RequestFormHandler renders an existing form request.
func (h *Forms) RequestFormHandler(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := flow.Param(r.Context(), "process")
		requestID := flow.Param(r.Context(), "requestId")
		logger := ctxlog.Logger(r.Context(), logger).With(
			logkeys.ProcessKey, key,
			logkeys.RequestID, requestID,
		)
		f, err := h.d.RequestForm(r.Context(), h.principal(r), key, requestID)
		if err != nil {
			h.writeError(w, r, logger, err)
			return
		}
		h.writeForm(w, r, logger, f)
	}
}

// TaskFormHandler issues a new request for a task form.
func (h *Forms) TaskFormHandler(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := flow.Param(r.Context(), "process")
		taskID := flow.Param(r.Context(), "taskId")
		logger := ctxlog.Logger(r.Context(), logger).With(
			logkeys.ProcessKey, key,
			logkeys.TaskID, taskID,
		)
		f, err := h.d.TaskForm(r.Context(), h.principal(r), key, taskID, Details(r))
		if err != nil {
			h.writeError(w, r, logger, err)
			return
		}
		h.writeForm(w, r, logger, f)
	}
}

// ValidationFormHandler re-renders the form of a stored validation.
func (h *Forms) ValidationFormHandler(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := flow.Param(r.Context(), "process")
		validationID := flow.Param(r.Context(), "validationId")
		logger := ctxlog.Logger(r.Context(), logger).With(
			logkeys.ProcessKey, key,
			logkeys.ValidationID, validationID,
		)
		f, err := h.d.ValidationForm(r.Context(), h.principal(r), key, validationID)
		if err != nil {
			h.writeError(w, r, logger, err)
			return
		}
		h.writeForm(w, r, logger, f)
	}
}

// SubmitHandler submits the body against a form request.
// A non-empty action overrides the action of the body.
//
// JSON clients get the next form or the error. HTML clients are redirected
// to the next form; failed submissions are recovered and re-rendered.
func (h *Forms) SubmitHandler(logger log.Logger, action model.ActionType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := flow.Param(r.Context(), "process")
		requestID := flow.Param(r.Context(), "requestId")
		logger := ctxlog.Logger(r.Context(), logger).With(
			logkeys.ProcessKey, key,
			logkeys.RequestID, requestID,
		)
		user := h.principal(r)
		in, release, err := ParseInput(r, h.maxMemory)
		defer release()
		if err != nil {
			h.writeError(w, r, logger, err)
			return
		}
		if action != "" {
			in.Action = action
		}
		resp, err := h.d.SubmitForm(r.Context(), user, key, requestID, in)
		if err != nil {
			h.recoverSubmission(w, r, logger, user, key, requestID, err)
			return
		}
		next, err := h.d.RequestForm(r.Context(), user, key, resp.NextRequest.RequestID)
		if err != nil {
			h.writeError(w, r, logger, err)
			return
		}
		logger.Debug(
			logkeys.Message, "submitted",
			logkeys.Action, resp.Submission.Action,
			logkeys.SubmissionID, resp.Submission.ID,
		)
		if phttp.Negotiate(r, phttp.MediaTypeHTML, phttp.MediaTypeJSON) == phttp.MediaTypeJSON {
			if err = api.JSON(w, next, 0); err != nil {
				logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
			}
			return
		}
		http.Redirect(w, r, next.Links["self"], http.StatusSeeOther)
	}
}

// recoverSubmission re-renders a failed submission for HTML clients.
func (h *Forms) recoverSubmission(w http.ResponseWriter, r *http.Request, logger log.Logger, user *model.User, key, requestID string, cause error) {
	if phttp.Negotiate(r, phttp.MediaTypeHTML, phttp.MediaTypeJSON) == phttp.MediaTypeJSON {
		h.writeError(w, r, logger, cause)
		return
	}
	req, err := h.d.Request(r.Context(), user, key, requestID)
	if err != nil {
		h.writeError(w, r, logger, cause)
		return
	}
	f, err := h.d.Recover(r.Context(), user, req, cause)
	if err != nil {
		h.writeError(w, r, logger, err)
		return
	}
	logger.Debug(
		logkeys.Message, "recovered submission",
		logkeys.StatusCode, form.StatusCode(cause),
		logkeys.ValidationID, f.ValidationID,
	)
	h.writeForm(w, r, logger, f)
}

// ValidateHandler validates the body against a form request.
// Results are always JSON: the validation, or the error with the
// validation as its detail.
func (h *Forms) ValidateHandler(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := flow.Param(r.Context(), "process")
		requestID := flow.Param(r.Context(), "requestId")
		logger := ctxlog.Logger(r.Context(), logger).With(
			logkeys.ProcessKey, key,
			logkeys.RequestID, requestID,
		)
		in, release, err := ParseInput(r, h.maxMemory)
		defer release()
		if err == nil {
			var v *model.Validation
			if v, err = h.d.ValidateForm(r.Context(), h.principal(r), key, requestID, in); err == nil {
				if err = api.JSON(w, v, 0); err != nil {
					logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
				}
				return
			}
		}
		logger.Info(logkeys.Message, "validating", logkeys.Error, err)
		if v := form.ValidationOf(err); v != nil {
			api.JSONErrorDetail(w, err, form.StatusCode(err), v)
			return
		}
		api.JSONError(w, publicError(err), form.StatusCode(err))
	}
}

// AttachmentHandler streams the content of an attachment.
func (h *Forms) AttachmentHandler(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := flow.Param(r.Context(), "process")
		requestID := flow.Param(r.Context(), "requestId")
		attachmentID := flow.Param(r.Context(), "attachmentId")
		logger := ctxlog.Logger(r.Context(), logger).With(
			logkeys.ProcessKey, key,
			logkeys.RequestID, requestID,
			logkeys.AttachmentID, attachmentID,
		)
		a, rc, err := h.d.Attachment(r.Context(), h.principal(r), key, requestID, attachmentID)
		if err != nil {
			h.writeError(w, r, logger, err)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", a.ContentType)
		if a.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
		}
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
		if _, err = io.Copy(w, rc); err != nil {
			logger.Info(logkeys.Message, "writing attachment", logkeys.Error, err)
		}
	}
}

// RemoveAttachmentHandler removes an attachment from a form request.
func (h *Forms) RemoveAttachmentHandler(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := flow.Param(r.Context(), "process")
		requestID := flow.Param(r.Context(), "requestId")
		attachmentID := flow.Param(r.Context(), "attachmentId")
		logger := ctxlog.Logger(r.Context(), logger).With(
			logkeys.ProcessKey, key,
			logkeys.RequestID, requestID,
			logkeys.AttachmentID, attachmentID,
		)
		_, err := h.d.SubmitForm(r.Context(), h.principal(r), key, requestID, &form.Input{
			Action:       model.ActionRemove,
			AttachmentID: attachmentID,
			Details:      Details(r),
		})
		if err != nil {
			h.writeError(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SearchHandler returns the tasks of a process the principal may act on
// as JSON, CSV, or a spreadsheet.
func (h *Forms) SearchHandler(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := flow.Param(r.Context(), "process")
		logger := ctxlog.Logger(r.Context(), logger).With(logkeys.ProcessKey, key)
		tasks, err := h.d.Search(r.Context(), h.principal(r), key, enginehttp.CriteriaFromRequest(r))
		if err != nil {
			h.writeError(w, r, logger, err)
			return
		}
		if tasks == nil {
			tasks = []*model.Task{}
		}
		mediaType := phttp.Negotiate(r, phttp.MediaTypeJSON, phttp.MediaTypeCSV, phttp.MediaTypeExcel)
		if h.metrics != nil {
			h.metrics.Exports.WithLabelValues(mediaType).Inc()
		}
		logger.Debug(
			logkeys.Message, "searched tasks",
			logkeys.GenericCount, len(tasks),
			"media_type", mediaType,
		)
		switch mediaType {
		case phttp.MediaTypeCSV:
			w.Header().Set("Content-Type", mediaType)
			w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": key + ".csv"}))
			err = export.CSV(w, tasks)
		case phttp.MediaTypeExcel:
			w.Header().Set("Content-Type", mediaType)
			w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": key + ".xlsx"}))
			err = export.XLSX(w, tasks)
		default:
			err = api.JSON(w, tasks, 0)
		}
		if err != nil {
			logger.Info(logkeys.Message, "writing search results", logkeys.Error, err)
		}
	}
}
