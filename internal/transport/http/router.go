package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts every route. gatherer may be nil to omit /metrics.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Recoverer)
	router.Use(requestLogger(h.log))

	router.Get("/healthz", h.health)
	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/seasons/{season}", func(r chi.Router) {
		r.Get("/leaderboard", h.leaderboard)
		r.Get("/leaderboard/tournament", h.tournamentLeaderboard)
		r.Get("/feed", h.ServeFeed)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Post("/seasons/{season}/grade", h.grade)
		r.Get("/seasons/{season}/audit/{username}", h.audit)
		r.Post("/lookups/refresh", h.refreshLookups)
		r.Route("/questions/{id}", func(r chi.Router) {
			r.Put("/answer", h.setCorrectAnswer)
			r.Post("/odds", h.updateFromOdds)
			r.Post("/finalize", h.finalizeWinners)
		})
	})

	return router
}
