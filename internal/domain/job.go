package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether s is one of the two states a job never leaves.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job type tags. Adding a type means registering a handler, not a migration.
const (
	TypeTextGeneration = "text-generation"
	TypeVideoIngest    = "video-ingest"
	TypeIndexRefresh   = "index-refresh"
)

type Job struct {
	ID             uuid.UUID
	TenantID       string
	Type           string
	Status         JobStatus
	Payload        json.RawMessage
	Result         json.RawMessage
	Attempts       int
	WorkerID       *uuid.UUID
	LeaseExpiresAt *time.Time
	NextRetryAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// FailureResult is stored in jobs.result on every failed attempt. Success
// results are handler-specific documents.
type FailureResult struct {
	Error     string `json:"error"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
	Attempt   int    `json:"attempt"`
}

type CreditPool struct {
	TenantID     string
	PeriodKey    string
	TotalCredits int64
	UsedCredits  int64
}

type UsageRecord struct {
	ID             uuid.UUID
	TenantID       string
	JobID          uuid.UUID
	JobType        string
	TokensIn       int
	TokensOut      int
	CreditsCharged int64
	CreatedAt      time.Time
}

type Document struct {
	ID        uuid.UUID
	TenantID  string
	JobID     uuid.UUID
	Title     string
	Content   string
	CreatedAt time.Time
}
