package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lorekeep/lorekeep/internal/credits"
	"github.com/lorekeep/lorekeep/internal/dispatch"
	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/queue"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		http.Error(w, "redis not ready", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

type dispatchRequest struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	if req.Payload == nil {
		req.Payload = map[string]any{}
	}

	principal := principalFrom(r.Context())
	jobID, decision, err := s.dispatcher.Dispatch(r.Context(), principal, dispatch.Request{
		Type:    req.Type,
		Payload: req.Payload,
	})
	if decision.Limit > 0 {
		setRateHeaders(w, decision)
	}
	if err != nil {
		var validationErr *domain.ValidationError
		var admissionErr *domain.AdmissionError
		switch {
		case errors.As(err, &validationErr):
			writeError(w, http.StatusBadRequest, "validation_error", validationErr.Error())
		case errors.As(err, &admissionErr):
			if admissionErr.RetryAfter > 0 {
				w.Header().Set("Retry-After",
					strconv.FormatInt(int64(admissionErr.RetryAfter/time.Second)+1, 10))
			}
			status := http.StatusTooManyRequests
			if admissionErr.Reason == domain.ReasonInsufficientCredits {
				status = http.StatusPaymentRequired
			}
			writeError(w, status, admissionErr.Reason, admissionErr.Message)
		default:
			s.logger.Error("dispatch failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal", "failed to dispatch job")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, dispatchResponse{
		JobID:  jobID.String(),
		Status: string(domain.StatusPending),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_job_id", "job id must be a UUID")
		return
	}

	principal := principalFrom(r.Context())
	job, err := queue.GetByID(r.Context(), s.pool, principal.TenantID, jobID)
	if err != nil {
		s.logger.Error("job lookup failed", "err", err, "job_id", jobID)
		writeError(w, http.StatusInternalServerError, "internal", "failed to fetch job")
		return
	}
	if job == nil {
		// Also the tenant-isolation boundary: another tenant's job is
		// indistinguishable from a missing one.
		writeError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var statusFilter *domain.JobStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := domain.JobStatus(raw)
		switch st {
		case domain.StatusPending, domain.StatusProcessing, domain.StatusCompleted, domain.StatusFailed:
			statusFilter = &st
		default:
			writeError(w, http.StatusBadRequest, "invalid_status", "unknown status filter")
			return
		}
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	principal := principalFrom(r.Context())
	jobs, err := queue.ListByTenant(r.Context(), s.pool, principal.TenantID, statusFilter, limit)
	if err != nil {
		s.logger.Error("job list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}

	resp := listJobsResponse{Jobs: make([]jobResponse, 0, len(jobs))}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(job))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCreditBalance is display-only; admission authority lives in the
// ledger's reserve, not here.
func (s *Server) handleCreditBalance(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	period := credits.CurrentPeriod()

	bal, err := s.ledger.Balance(r.Context(), principal.TenantID, period)
	if err != nil {
		s.logger.Error("balance lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to fetch balance")
		return
	}

	writeJSON(w, http.StatusOK, creditBalanceResponse{
		Period:    period,
		Total:     bal.Total,
		Used:      bal.Used,
		Available: bal.Available,
	})
}

func toJobResponse(job *domain.Job) jobResponse {
	return jobResponse{
		JobID:       job.ID.String(),
		Type:        job.Type,
		Status:      string(job.Status),
		Attempts:    job.Attempts,
		Result:      job.Result,
		NextRetryAt: job.NextRetryAt,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
}
