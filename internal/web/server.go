// Package web serves the local session dashboard.
package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/mate/internal/config"
	"github.com/hpungsan/mate/internal/logging"
	"github.com/hpungsan/mate/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// shutdownTimeout bounds graceful shutdown once the run context ends.
const shutdownTimeout = 5 * time.Second

// NewServer creates and configures the HTTP server for the dashboard.
// rt may be nil, in which case pages read from the database and summary file.
func NewServer(database *sql.DB, cfg *config.Config, rt *ops.Runtime, version string, logger *zap.Logger) (*http.Server, error) {
	logger = logging.OrNop(logger).Named("web")

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to create template sub-FS: %w", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to create static sub-FS: %w", err)
	}

	h := &Handlers{
		db:       database,
		cfg:      cfg,
		rt:       rt,
		renderer: NewRenderer(templateSub, version, logger),
		logger:   logger,
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.WebBind, cfg.WebPort),
		Handler:           securityHeaders(h.routes(staticSub)),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// routes registers every dashboard route.
func (h *Handlers) routes(static fs.FS) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.HandleSession)
	mux.HandleFunc("GET /contexts", h.HandleContexts)
	mux.HandleFunc("GET /contexts/{id}", h.HandleContext)
	mux.HandleFunc("POST /contexts/purge", h.HandlePurge)
	mux.HandleFunc("GET /suggestions", h.HandleSuggestions)
	mux.HandleFunc("GET /api/state", h.HandleState)
	mux.HandleFunc("POST /flush", h.HandleFlush)
	mux.HandleFunc("POST /insights", h.HandleInsights)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	return mux
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run serves until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	logger = logging.OrNop(logger).Named("web")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("dashboard running", zap.String("url", "http://"+srv.Addr))
	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down dashboard")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
