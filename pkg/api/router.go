package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/tgcloud/internal/logger"
	"github.com/marmos91/tgcloud/pkg/engine"
)

// newRouter configures the chi router with middleware and routes.
//
// Routes:
//   - GET /healthz - Liveness probe
//   - GET /metrics - Prometheus metrics (when a registry is provided)
//   - GET /api/v1/files?prefix= - List files
//   - POST /api/v1/files - Upload a file (multipart: "file", optional "name")
//   - GET /api/v1/files/{name} - Download a file
//   - POST /api/v1/rename - Rename a file
//   - DELETE /api/v1/files/{name} - Delete a file
func newRouter(eng *engine.Engine, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Response{Status: "ok", Timestamp: time.Now().UTC()})
	})

	if reg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	h := &fileHandler{engine: eng}
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/files", h.list)
		r.Post("/files", h.upload)
		r.Get("/files/*", h.download)
		r.Delete("/files/*", h.delete)
		r.Post("/rename", h.rename)
	})

	return r
}

// requestLogger logs each request through the structured logger instead of
// chi's stdlib-flavored default.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debug("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
