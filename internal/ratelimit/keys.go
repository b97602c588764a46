package ratelimit

import (
	"fmt"
	"time"
)

// WindowKey identifies one fixed window for a principal and route class.
// Embedding the window start in the key means expired windows simply age out
// of Redis; no reset bookkeeping is needed.
func WindowKey(principalID string, class Class, windowStart int64) string {
	return fmt.Sprintf("lorekeep:rl:%s:%s:%d", class, principalID, windowStart)
}

// windowSeconds is the window width in whole seconds, floored at one.
// Windows have second granularity; anything shorter would truncate to zero
// and divide by it.
func windowSeconds(window time.Duration) int64 {
	secs := int64(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// WindowStart truncates now to the start of its fixed window.
func WindowStart(now time.Time, window time.Duration) int64 {
	secs := windowSeconds(window)
	return now.Unix() / secs * secs
}

// ResetIn is the time remaining until the current window rolls over.
func ResetIn(now time.Time, window time.Duration) time.Duration {
	start := WindowStart(now, window)
	end := time.Unix(start+windowSeconds(window), 0)
	return end.Sub(now)
}
