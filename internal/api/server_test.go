package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lorekeep/lorekeep/internal/credits"
	"github.com/lorekeep/lorekeep/internal/dispatch"
	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/queue"
	"github.com/lorekeep/lorekeep/internal/ratelimit"
	"github.com/lorekeep/lorekeep/internal/testutil"
)

func newTestServer(t *testing.T, defaultCredits, aiLimit int64) *Server {
	t.Helper()
	pool := testutil.NewPool(t)
	rc := testutil.NewRedis(t)

	limiter := ratelimit.New(rc,
		ratelimit.Limits{Limit: 300, Window: time.Minute},
		ratelimit.Limits{Limit: aiLimit, Window: time.Minute})
	ledger := credits.NewLedger(pool, defaultCredits)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := dispatch.New(pool, limiter, ledger, logger)
	return NewServer(pool, rc, dispatcher, ledger, limiter, logger)
}

func doJSON(t *testing.T, s *Server, method, path, tenantID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
		req.Header.Set("X-User-ID", "user-1")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestDispatchEndpoint(t *testing.T) {
	s := newTestServer(t, 500, 10)

	rec := doJSON(t, s, http.MethodPost, "/v1/jobs", "tenant-a",
		`{"type":"text-generation","payload":{"prompt":"hello"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "10" {
		t.Errorf("X-RateLimit-Limit = %q", rec.Header().Get("X-RateLimit-Limit"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "9" {
		t.Errorf("X-RateLimit-Remaining = %q", rec.Header().Get("X-RateLimit-Remaining"))
	}

	var resp struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "pending" {
		t.Errorf("status = %q, want pending", resp.Status)
	}
	if _, err := uuid.Parse(resp.JobID); err != nil {
		t.Errorf("job_id = %q: %v", resp.JobID, err)
	}
}

func TestDispatchEndpointRejections(t *testing.T) {
	s := newTestServer(t, 1, 100)

	tests := []struct {
		name     string
		tenantID string
		body     string
		status   int
		reason   string
	}{
		{
			name:   "missing tenant header",
			body:   `{"type":"text-generation","payload":{"prompt":"x"}}`,
			status: http.StatusUnauthorized,
			reason: "unauthenticated",
		},
		{
			name:     "bad json",
			tenantID: "tenant-a",
			body:     `{"type":`,
			status:   http.StatusBadRequest,
			reason:   "invalid_json",
		},
		{
			name:     "unknown type",
			tenantID: "tenant-a",
			body:     `{"type":"mine-bitcoin","payload":{}}`,
			status:   http.StatusBadRequest,
			reason:   "validation_error",
		},
		{
			name:     "missing prompt",
			tenantID: "tenant-a",
			body:     `{"type":"text-generation"}`,
			status:   http.StatusBadRequest,
			reason:   "validation_error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/v1/jobs", tt.tenantID, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			var resp struct {
				Reason string `json:"reason"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", resp.Reason, tt.reason)
			}
		})
	}
}

func TestDispatchEndpointCreditExhaustion(t *testing.T) {
	s := newTestServer(t, 1, 100)
	body := `{"type":"text-generation","payload":{"prompt":"x"}}`

	rec := doJSON(t, s, http.MethodPost, "/v1/jobs", "tenant-a", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first dispatch: %d %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, s, http.MethodPost, "/v1/jobs", "tenant-a", body)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402 (body %s)", rec.Code, rec.Body)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("402 without Retry-After (period rollover hint)")
	}
}

func TestDispatchEndpointRateLimit(t *testing.T) {
	s := newTestServer(t, 500, 2)
	body := `{"type":"text-generation","payload":{"prompt":"x"}}`

	for i := 0; i < 2; i++ {
		if rec := doJSON(t, s, http.MethodPost, "/v1/jobs", "tenant-a", body); rec.Code != http.StatusAccepted {
			t.Fatalf("dispatch %d: %d %s", i, rec.Code, rec.Body)
		}
	}

	rec := doJSON(t, s, http.MethodPost, "/v1/jobs", "tenant-a", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 without Retry-After")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestJobStatusEndpointTenantIsolation(t *testing.T) {
	s := newTestServer(t, 500, 10)
	ctx := context.Background()

	jobID, err := queue.Insert(ctx, s.pool, "tenant-a", domain.TypeTextGeneration,
		json.RawMessage(`{"prompt":"hi"}`))
	if err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, s, http.MethodGet, "/v1/jobs/"+jobID.String(), "tenant-a", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("owner lookup: %d %s", rec.Code, rec.Body)
	}
	var resp struct {
		JobID    string `json:"job_id"`
		Status   string `json:"status"`
		Attempts int    `json:"attempts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.JobID != jobID.String() || resp.Status != "pending" {
		t.Errorf("resp = %+v", resp)
	}

	// Cross-tenant lookups 404 exactly like a missing job.
	rec = doJSON(t, s, http.MethodGet, "/v1/jobs/"+jobID.String(), "tenant-b", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-tenant lookup: %d, want 404", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/v1/jobs/not-a-uuid", "tenant-a", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed id: %d, want 400", rec.Code)
	}
}

func TestListJobsEndpoint(t *testing.T) {
	s := newTestServer(t, 500, 10)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := queue.Insert(ctx, s.pool, "tenant-a", domain.TypeIndexRefresh,
			json.RawMessage(`{"collection_id":"main"}`)); err != nil {
			t.Fatal(err)
		}
	}

	rec := doJSON(t, s, http.MethodGet, "/v1/jobs?status=pending", "tenant-a", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body)
	}
	var resp struct {
		Jobs []json.RawMessage `json:"jobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Jobs) != 2 {
		t.Errorf("listed %d jobs, want 2", len(resp.Jobs))
	}

	rec = doJSON(t, s, http.MethodGet, "/v1/jobs?status=sideways", "tenant-a", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad filter: %d, want 400", rec.Code)
	}
}

func TestCreditBalanceEndpoint(t *testing.T) {
	s := newTestServer(t, 500, 10)

	rec := doJSON(t, s, http.MethodPost, "/v1/jobs", "tenant-a",
		`{"type":"video-ingest","payload":{"source_url":"https://cdn.example.com/a.mp4"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("dispatch: %d %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, s, http.MethodGet, "/v1/credits", "tenant-a", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("balance: %d %s", rec.Code, rec.Body)
	}
	var resp struct {
		Period    string `json:"period"`
		Total     int64  `json:"total"`
		Used      int64  `json:"used"`
		Available int64  `json:"available"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 500 || resp.Used != 5 || resp.Available != 495 {
		t.Errorf("balance = %+v", resp)
	}
	if resp.Period != credits.CurrentPeriod() {
		t.Errorf("period = %q", resp.Period)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, 500, 10)

	if rec := doJSON(t, s, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("/healthz = %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("/readyz = %d", rec.Code)
	}
}
