package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/cache"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/model"
)

// maxSubmitBytes bounds the submit body: code plus test inputs.
const maxSubmitBytes = 10 << 20

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSubmitBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body", err.Error())
		return
	}
	if err := validateSubmitBody(body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid submit request", err.Error())
		return
	}
	var req model.SubmissionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid submit request", err.Error())
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid submit request", err.Error())
		return
	}
	if req.ClientIP == "" {
		req.ClientIP = r.RemoteAddr
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	// Submitting an id that already has a live record is rejected rather
	// than re-executed.
	switch _, err := s.cache.Get(r.Context(), req.SubmissionID); {
	case err == nil:
		writeError(w, http.StatusConflict, "submission already exists", req.SubmissionID)
		return
	case errors.Is(err, cache.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "status cache unavailable", "")
		return
	case !errors.Is(err, cache.ErrNotFound):
		writeError(w, http.StatusInternalServerError, "status cache error", err.Error())
		return
	}

	// The cache record must exist before the queue entry: a worker claims
	// submissions by CAS on the QUEUED record.
	rec := model.NewQueuedRecord(&req, time.Now())
	if err := s.cache.Put(r.Context(), rec, s.opts.CacheTTL); err != nil {
		writeError(w, http.StatusServiceUnavailable, "status cache unavailable", "")
		return
	}
	if err := s.queue.Enqueue(&req); err != nil {
		writeError(w, http.StatusServiceUnavailable, "submission queue closed", "")
		return
	}
	s.logger.Info("submission accepted",
		zap.String("submission", req.SubmissionID),
		zap.String("language", req.Language),
		zap.Int("testCases", len(req.TestCases)))

	// A worker can dequeue the submission between the enqueue above and this
	// read; report the head position rather than a negative index.
	position := s.queue.Size() - 1
	if position < 0 {
		position = 0
	}
	if pos := s.queue.PositionOf(req.SubmissionID); pos != nil {
		position = *pos
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{
		SubmissionID:        req.SubmissionID,
		Status:              string(model.StatusQueued),
		Message:             "submission accepted for execution",
		QueuePosition:       position,
		EstimatedWaitTimeMs: s.queue.EstimatedWait().Milliseconds(),
		StatusURL:           fmt.Sprintf("/execution/status/%s", req.SubmissionID),
		ResultsURL:          fmt.Sprintf("/execution/results/%s", req.SubmissionID),
	})
}

// handleStatus serves both /status/{id} and /results/{id}: a point read of
// the cache with the live queue position injected while QUEUED.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.cache.Get(r.Context(), id)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		writeError(w, http.StatusNotFound, "submission not found", id)
		return
	case errors.Is(err, cache.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "status cache unavailable", "")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "status cache error", err.Error())
		return
	}
	if rec.Status == model.StatusQueued {
		rec.QueuePosition = s.queue.PositionOf(id)
	}
	if err := s.cache.Touch(r.Context(), id, s.opts.CacheTTL); err != nil && !errors.Is(err, cache.ErrNotFound) {
		s.logger.Warn("ttl touch failed", zap.String("submission", id), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.cache.Get(r.Context(), id)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		writeError(w, http.StatusBadRequest, "submission not found", id)
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, "status cache unavailable", "")
		return
	}

	// The CAS on the cache record is the authority: it succeeds iff the
	// submission is still QUEUED at the moment it runs, so a worker that
	// has just claimed the submission wins the race and the cancel fails.
	now := time.Now().UTC()
	cancelled := *rec
	cancelled.Status = model.StatusCancelled
	cancelled.ExecutionStatus = model.ExecCancelled
	cancelled.QueuePosition = nil
	cancelled.TestCaseResults = []model.TestCaseResult{}
	cancelled.CompletedAt = &now
	swapped, err := s.cache.CompareAndSet(r.Context(), id, model.StatusQueued, &cancelled, s.opts.CacheTTL)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "status cache unavailable", "")
		return
	}
	if !swapped {
		writeError(w, http.StatusBadRequest, "submission is not cancellable",
			fmt.Sprintf("status is %s", rec.Status))
		return
	}
	// Best effort: the worker drops the entry anyway if it dequeues it,
	// because its claim CAS no longer finds QUEUED.
	s.queue.Cancel(id)
	s.logger.Info("submission cancelled", zap.String("submission", id))
	writeJSON(w, http.StatusOK, map[string]string{
		"submissionId": id,
		"status":       string(model.StatusCancelled),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:             "UP",
		QueueSize:          s.queue.Size(),
		ActiveWorkers:      s.opts.WorkerCount,
		AvgExecutionTimeMs: s.queue.AverageDuration().Milliseconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}
