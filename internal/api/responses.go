package api

import (
	"encoding/json"
	"net/http"
	"time"
)

type errorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, reason, message string) {
	writeJSON(w, status, errorResponse{
		Error:   http.StatusText(status),
		Reason:  reason,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type dispatchResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type jobResponse struct {
	JobID       string          `json:"job_id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	Result      json.RawMessage `json:"result,omitempty"`
	NextRetryAt *time.Time      `json:"next_retry_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

type listJobsResponse struct {
	Jobs []jobResponse `json:"jobs"`
}

type creditBalanceResponse struct {
	Period    string `json:"period"`
	Total     int64  `json:"total"`
	Used      int64  `json:"used"`
	Available int64  `json:"available"`
}
