package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/PlayerYK/TweetSift/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// maxBodyBytes bounds request payloads.
const maxBodyBytes = 1 << 20

// Options configures the HTTP server.
type Options struct {
	Version string
	// ExportsDir is where export files are served from. Empty disables downloads.
	ExportsDir string
}

// NewServer creates the HTTP server: the dashboard, the message API and the
// observation feed. It listens on rt.Config.HTTPBind:HTTPPort.
func NewServer(rt *ops.Runtime, opts Options) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", rt.Config.HTTPBind, rt.Config.HTTPPort),
		Handler:           NewHandlers(rt, opts).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Routes builds the router.
func (h *Handlers) Routes() http.Handler {
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("static sub-FS: %v", err))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))
	r.Use(securityHeaders)

	r.Get("/", h.HandleDashboard)
	r.Get("/health", h.HandleHealth)
	r.Get("/observe", h.HandleObserve)
	r.Get("/exports/{file}", h.HandleExportFile)

	r.Route("/api", func(r chi.Router) {
		r.Get("/messages", h.HandleMessageTypes)
		r.Post("/messages", h.HandleEnvelope)
		r.Post("/messages/{type}", h.HandleMessage)
		r.Get("/export/status", h.HandleExportStatus)
	})

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticSub)))
	return r
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'none'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request at debug level, warn for 5xx.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			level := slog.LevelDebug
			if ww.Status() >= 500 {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Run serves srv until ctx ends, then shuts it down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("TweetSift listening", "addr", "http://"+srv.Addr)
	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
