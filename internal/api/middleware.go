package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/lorekeep/lorekeep/internal/dispatch"
	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/ratelimit"
)

type principalKeyType struct{}

var principalKey = principalKeyType{}

// requirePrincipal extracts caller identity from headers set by the
// authenticating proxy in front of this service. Authentication itself is
// out of scope here; an absent tenant means the proxy was bypassed.
func (s *Server) requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get("X-Tenant-ID")
		if tenantID == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing X-Tenant-ID header")
			return
		}
		p := dispatch.Principal{
			TenantID: tenantID,
			UserID:   r.Header.Get("X-User-ID"),
		}
		ctx := context.WithValue(r.Context(), principalKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFrom(ctx context.Context) dispatch.Principal {
	p, _ := ctx.Value(principalKey).(dispatch.Principal)
	return p
}

// rateLimitGlobal throttles read traffic (status polling, listings) at the
// generous global class so a polling storm cannot starve the store.
func (s *Server) rateLimitGlobal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := principalFrom(r.Context())
		decision, err := s.limiter.Allow(r.Context(), p.RateKey(), ratelimit.ClassGlobal)
		if err != nil {
			// Limiter outage must not take reads down with it.
			s.logger.Error("rate limiter unavailable", "err", err)
			next.ServeHTTP(w, r)
			return
		}

		setRateHeaders(w, decision)
		if !decision.Allowed {
			writeError(w, http.StatusTooManyRequests, domain.ReasonRateLimited, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func setRateHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(int64(d.ResetIn/time.Second), 10))
	if d.RetryAfter > 0 {
		secs := int64(d.RetryAfter / time.Second)
		if secs < 1 {
			secs = 1
		}
		h.Set("Retry-After", strconv.FormatInt(secs, 10))
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
