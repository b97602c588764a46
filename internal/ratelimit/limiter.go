package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lorekeep/lorekeep/internal/domain"
)

// Class selects which (limit, window) pair applies to a request. AI-invoking
// job types get a strict budget; everything else shares the generous global
// one, so cheap requests are never starved by expensive ones.
type Class string

const (
	ClassGlobal Class = "global"
	ClassAI     Class = "ai"
)

type Limits struct {
	Limit  int64
	Window time.Duration
}

// Decision is returned for every Allow call, allowed or not, so callers can
// self-throttle. RetryAfter is non-zero only when Allowed is false.
type Decision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	ResetIn    time.Duration
	RetryAfter time.Duration
}

type Limiter struct {
	rc      *redis.Client
	classes map[Class]Limits
	now     func() time.Time
}

func New(rc *redis.Client, global, ai Limits) *Limiter {
	return &Limiter{
		rc: rc,
		classes: map[Class]Limits{
			ClassGlobal: global,
			ClassAI:     ai,
		},
		now: time.Now,
	}
}

// ClassForJobType maps a job type tag to its route class.
func ClassForJobType(jobType string) Class {
	switch jobType {
	case domain.TypeTextGeneration, domain.TypeVideoIngest:
		return ClassAI
	default:
		return ClassGlobal
	}
}

// Allow counts one request against the principal's current fixed window.
// INCR is atomic in Redis, so concurrent requests across API instances share
// one counter without coordination. The count is incremented even on denial;
// a denied request still happened.
func (l *Limiter) Allow(ctx context.Context, principalID string, class Class) (Decision, error) {
	limits, ok := l.classes[class]
	if !ok {
		limits = l.classes[ClassGlobal]
	}

	now := l.now()
	key := WindowKey(principalID, class, WindowStart(now, limits.Window))

	count, err := l.rc.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, err
	}
	if count == 1 {
		// First hit in this window; expire a little after rollover so
		// clock skew between instances cannot drop a live counter.
		l.rc.Expire(ctx, key, limits.Window+time.Second)
	}

	resetIn := ResetIn(now, limits.Window)
	d := Decision{
		Allowed:   count <= limits.Limit,
		Limit:     limits.Limit,
		Remaining: max(limits.Limit-count, 0),
		ResetIn:   resetIn,
	}
	if !d.Allowed {
		d.RetryAfter = resetIn
	}
	return d, nil
}
