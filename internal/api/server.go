package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/DenizUgur/solarpaper/internal/health"
	"github.com/DenizUgur/solarpaper/internal/metrics"
	"github.com/DenizUgur/solarpaper/internal/snapshot"
)

// Status is the view of the snapshot builder exposed over HTTP.
type Status interface {
	Progress() snapshot.Progress
	LastSummary() (snapshot.Summary, bool)
	Path() string
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, status Status) *Server {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(readiness(status)))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/progress", progressHandler(status))
	mux.HandleFunc("GET /api/v1/summary", summaryHandler(status))
	mux.HandleFunc("GET /api/v1/snapshot", snapshotHandler(status))

	// Build middleware chain: metrics -> logging -> mux.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// readiness passes once a snapshot has been written, and before that for
// as long as the build has not failed.
func readiness(status Status) func() error {
	return func() error {
		if _, ok := status.LastSummary(); ok {
			return nil
		}
		if p := status.Progress(); p.State == snapshot.Failed {
			return errors.New("snapshot build failed: " + p.Error)
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func progressHandler(status Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, status.Progress())
	}
}

type failureJSON struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Error    string `json:"error"`
}

type summaryJSON struct {
	snapshot.Summary
	Failures []failureJSON `json:"failures"`
}

func summaryHandler(status Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, ok := status.LastSummary()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot built yet"})
			return
		}
		out := summaryJSON{Summary: sum, Failures: make([]failureJSON, 0, len(sum.Failed))}
		for _, f := range sum.Failed {
			out.Failures = append(out.Failures, failureJSON{ID: f.ID, Category: f.Category.String(), Error: f.Err.Error()})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func snapshotHandler(status Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, ok := status.LastSummary()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot built yet"})
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("X-Snapshot-Run", sum.RunID)
		http.ServeFile(w, r, status.Path())
	}
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
