package web

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/immich-metasync/internal/web/handlers"
	"github.com/kozaktomas/immich-metasync/internal/web/static"
)

// requestTimeout bounds every non-streaming API request.
const requestTimeout = time.Minute

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.deps.API, s.deps.Exiftool, s.logger)
	configHandler := handlers.NewConfigHandler(s.config)
	syncHandler := handlers.NewSyncHandler(s.config, s.deps.Runner, s.jobManager, s.logger)
	runsHandler := handlers.NewRunsHandler(s.deps.Runs, s.logger)
	logsHandler := handlers.NewLogsHandler(s.deps.Logs)

	s.router.Route("/api/v1", func(r chi.Router) {
		// SSE streams must not be cut by the request timeout.
		r.Get("/sync/{jobId}/events", syncHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			r.Get("/health", healthHandler.Get)
			r.Get("/config", configHandler.Get)

			// Sync (long-running operation)
			r.Post("/sync", syncHandler.Start)
			r.Get("/sync/current", syncHandler.Current)
			r.Get("/sync/{jobId}", syncHandler.Status)
			r.Delete("/sync/{jobId}", syncHandler.Cancel)

			r.Get("/runs", runsHandler.List)
			r.Get("/logs", logsHandler.Get)
		})
	})

	s.router.Get("/", s.serveIndex)
	s.router.Get("/index.html", s.serveIndex)
}

// serveIndex serves the embedded status page
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	f, err := static.GetFileSystem().Open("/index.html")
	if err != nil {
		http.Error(w, "dashboard not available", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
}
