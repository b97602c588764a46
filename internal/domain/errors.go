package domain

import (
	"fmt"
	"time"
)

// Admission denial reasons, returned verbatim in API error bodies.
const (
	ReasonRateLimited         = "rate_limited"
	ReasonInsufficientCredits = "insufficient_credits"
)

// ValidationError rejects a dispatch before any side effect.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AdmissionError rejects a dispatch at the rate or credit gate. RetryAfter is
// always set: the window rollover for rate denials, the billing-period
// rollover for credit denials. It is a hint, not a guarantee of admission.
type AdmissionError struct {
	Reason     string
	Message    string
	RetryAfter time.Duration
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("admission denied (%s): %s", e.Reason, e.Message)
}
