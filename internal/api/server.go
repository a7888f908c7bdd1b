// SPDX-License-Identifier: MIT

// Package api exposes the job-control and read API of the pipeline.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vidforge/pipeline/internal/log"
	"github.com/vidforge/pipeline/internal/queue"
	"github.com/vidforge/pipeline/internal/store"
)

// Server carries the API dependencies.
type Server struct {
	Store     *store.Store
	Queue     queue.Queue
	MediaRoot string

	logger zerolog.Logger
}

// NewServer creates an API server.
func NewServer(st *store.Store, q queue.Queue, mediaRoot string) *Server {
	return &Server{
		Store:     st,
		Queue:     q,
		MediaRoot: mediaRoot,
		logger:    log.WithComponent("api"),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(300, time.Minute))

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/assets", s.handleCreateAsset)
		r.Route("/assets/{assetID}", func(r chi.Router) {
			r.Get("/", s.handleGetAsset)
			r.Post("/jobs", s.handleCreateJob)
			r.Get("/moderation", s.handleGetModeration)
			r.Get("/captions.vtt", s.handleGetCaptions)
			r.Put("/captions", s.handlePutCaptions)
		})
		r.Get("/jobs/{jobID}", s.handleGetJob)
	})
	return r
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
