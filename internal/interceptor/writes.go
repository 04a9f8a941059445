// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package interceptor

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/solutio/internal/events"
	"github.com/tomtom215/solutio/internal/logging"
	"github.com/tomtom215/solutio/internal/models"
	"github.com/tomtom215/solutio/internal/queue"
	"github.com/tomtom215/solutio/internal/records"
	"github.com/tomtom215/solutio/internal/store"
	"github.com/tomtom215/solutio/internal/validation"
)

// Messages returned in offline write responses.
const (
	msgQueued      = "Request saved offline and will be sent when connectivity returns."
	msgQueueFull   = "Offline storage is full. The request was not saved."
	msgQueueFailed = "The request could not be saved offline."
)

// Request headers never persisted with a queued write.
var unreplayedHeaders = map[string]bool{
	"Content-Length":    true,
	"Host":              true,
	"Accept-Encoding":   true,
	"X-Forwarded-For":   true,
	"X-Forwarded-Host":  true,
	"X-Forwarded-Proto": true,
}

// serveWrite forwards a write and queues it when the upstream cannot take it.
func (i *Interceptor) serveWrite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, complete, err := readLimited(r.Body, i.config.MaxBodyBytes)
	if err != nil {
		countRequest(ClassAPIWrite, outcomeError)
		writeJSON(w, http.StatusBadRequest, models.OfflineResponse{Message: "Failed to read request body", Error: err.Error()})
		return
	}
	if !complete {
		countRequest(ClassAPIWrite, outcomeRejected)
		writeJSON(w, http.StatusRequestEntityTooLarge, models.OfflineResponse{Message: "Request body too large"})
		return
	}

	out, err := i.newUpstreamRequest(ctx, r, body)
	if err != nil {
		countRequest(ClassAPIWrite, outcomeError)
		writeJSON(w, http.StatusBadRequest, models.OfflineResponse{Message: "Invalid request", Error: err.Error()})
		return
	}

	resp, err := i.client.Do(out)
	if err == nil {
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			defer resp.Body.Close()
			countRequest(ClassAPIWrite, outcomeNetwork)
			relay(w, resp, nil)
			return
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		err = &statusError{code: resp.StatusCode}
	}
	if ctx.Err() != nil {
		// The page gave up; it will resubmit.
		countRequest(ClassAPIWrite, outcomeError)
		return
	}
	i.queueWrite(w, r, body, err)
}

// statusError is a non-2xx answer to a forwarded write.
type statusError struct{ code int }

func (e *statusError) Error() string { return "upstream answered " + strconv.Itoa(e.code) }

// queueWrite persists the write and answers on the upstream's behalf. A
// CREATE of a known model also stores the offline record.
func (i *Interceptor) queueWrite(w http.ResponseWriter, r *http.Request, body []byte, cause error) {
	ctx := r.Context()
	req := queue.Request{
		Action:    queue.ActionForMethod(r.Method),
		Model:     i.config.ModelForPath(r.URL.Path),
		TargetURL: r.URL.RequestURI(),
		Method:    r.Method,
		Headers:   replayHeaders(r.Header),
		Body:      body,
		Timestamp: time.Now(),
	}

	var (
		entry   *queue.Entry
		localID int64
		err     error
	)
	if req.Action == queue.ActionCreate && req.Model != "" && i.records != nil {
		created, cerr := i.records.CreateOffline(ctx, req.Model, body, req)
		switch {
		case cerr == nil:
			entry, localID = created.Entry, created.Record.Meta().ID
		case errors.Is(cerr, records.ErrUnsupportedModel), errors.Is(cerr, records.ErrInvalidBody):
			logging.Ctx(ctx).Debug().Err(cerr).Str("model", req.Model).Msg("Queueing write without an offline record")
		default:
			err = cerr
		}
	}
	if entry == nil && err == nil {
		entry, err = i.queue.Enqueue(ctx, req)
	}
	if err != nil {
		i.writeQueueFailure(w, r, err)
		return
	}

	reason := "network"
	var se *statusError
	if errors.As(cause, &se) {
		reason = "status"
	}
	countRequest(ClassAPIWrite, outcomeQueued)
	interceptorQueuedWrites.WithLabelValues(string(entry.Action), reason).Inc()

	logging.Ctx(ctx).Info().
		Int64("entry_id", entry.ID).
		Str("method", entry.HTTPMethod).
		Str("target_url", entry.TargetURL).
		Str("cause", errString(cause)).
		Msg("Write queued for replay")

	if i.publisher != nil {
		ev := events.Event{
			Type:      events.TypeQueued,
			EntryID:   entry.ID,
			Model:     entry.Model,
			LocalID:   localID,
			TargetURL: entry.TargetURL,
			Method:    entry.HTTPMethod,
			Error:     errString(cause),
		}
		if perr := i.publisher.Publish(ctx, ev); perr != nil {
			logging.Ctx(ctx).Debug().Err(perr).Msg("Failed to publish queued event")
		}
	}

	w.Header().Set(HeaderOfflineQueued, "true")
	w.Header().Set(HeaderQueueID, strconv.FormatInt(entry.ID, 10))
	writeOffline(w, http.StatusOK, models.OfflineResponse{
		Message: msgQueued,
		QueueID: entry.ID,
		LocalID: localID,
	})
}

func (i *Interceptor) writeQueueFailure(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.RequestValidationError
	status, msg := http.StatusServiceUnavailable, msgQueueFailed
	switch {
	case store.IsQuotaExceeded(err):
		status, msg = http.StatusInsufficientStorage, msgQueueFull
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	}
	countRequest(ClassAPIWrite, outcomeError)
	logging.Ctx(r.Context()).Error().Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("Failed to queue write")
	if i.publisher != nil {
		ev := events.Event{
			Type:      events.TypeQueueRejected,
			TargetURL: r.URL.RequestURI(),
			Method:    r.Method,
			Error:     msg,
		}
		if perr := i.publisher.Publish(r.Context(), ev); perr != nil {
			logging.Ctx(r.Context()).Debug().Err(perr).Msg("Failed to publish queue_rejected event")
		}
	}
	writeOffline(w, status, models.OfflineResponse{Message: msg, Error: err.Error()})
}

// replayHeaders flattens the headers worth replaying.
func replayHeaders(h http.Header) map[string]string {
	clean := h.Clone()
	removeHopHeaders(clean)
	out := make(map[string]string, len(clean))
	for k, vv := range clean {
		if unreplayedHeaders[k] || len(vv) == 0 {
			continue
		}
		sep := ", "
		if k == "Cookie" {
			sep = "; "
		}
		out[k] = strings.Join(vv, sep)
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
