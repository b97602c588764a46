package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requirePrincipal)

		// Dispatch applies its own class-specific gate and reports the
		// decision back; everything else is throttled at the global class.
		r.Post("/jobs", s.handleDispatch)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimitGlobal)
			r.Get("/jobs", s.handleListJobs)
			r.Get("/jobs/{jobID}", s.handleJobStatus)
			r.Get("/credits", s.handleCreditBalance)
		})
	})

	return r
}
