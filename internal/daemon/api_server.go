package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"librarian/internal/api"
	"librarian/internal/config"
	"librarian/internal/logging"
	"librarian/internal/queue"
)

const shutdownGrace = 5 * time.Second

// apiServer serves /healthz, the read-only /api routes and /metrics.
type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	queueSvc *api.QueueService
	server   *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// newAPIServer returns nil when [metrics] is disabled or has no bind
// address; the nil server's methods are no-ops.
func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil || !cfg.Metrics.Enabled || strings.TrimSpace(cfg.Metrics.Bind) == "" {
		return nil, nil
	}
	s := &apiServer{
		bind:     strings.TrimSpace(cfg.Metrics.Bind),
		logger:   logging.NewComponentLogger(logger, "api-server"),
		daemon:   d,
		queueSvc: api.NewQueueService(d.store),
	}
	s.server = &http.Server{
		Handler:           s.routes(cfg.Metrics.Token),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}
	return s, nil
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	for pattern, h := range map[string]http.HandlerFunc{
		"GET /api/status":     s.handleStatus,
		"GET /api/queue":      s.handleQueue,
		"GET /api/books":      s.handleBooks,
		"GET /api/books/{id}": s.handleBook,
	} {
		mux.HandleFunc(pattern, requireBearer(token, h))
	}
	if registry := s.daemon.metrics.Registry(); registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	return tagRequest(mux)
}

// start binds the listener and serves until ctx ends or stop is called.
func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen on %s: %w", s.bind, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		err := s.server.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server stopped", "api_serve_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the metrics bind address is free"),
			)
		}
	}()
	context.AfterFunc(ctx, s.stop)

	s.logger.Info("api server listening", logging.String("address", ln.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	_ = s.server.Shutdown(ctx)
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.daemon.workflow.Health()
	status := http.StatusOK
	if !health.Ready {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, api.Health{Name: health.Name, Ready: health.Ready, Detail: health.Detail})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	deps := make([]api.DependencyStatus, len(status.Dependencies))
	for i, dep := range status.Dependencies {
		deps[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		LogPath:      status.LogPath,
		Watching:     status.Watching,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: deps,
	})
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	items, err := s.queueSvc.Queue(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Items: items})
}

func (s *apiServer) handleBooks(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := queue.ParseStatus(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", trimmed))
			return
		}
		statuses = append(statuses, status)
	}
	books, err := s.queueSvc.Books(r.Context(), statuses...)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.BookListResponse{Books: books})
}

func (s *apiServer) handleBook(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	resp, err := s.queueSvc.Describe(r.Context(), id)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if resp == nil {
		s.writeError(w, http.StatusNotFound, "book not found")
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) internalError(w http.ResponseWriter, r *http.Request, err error) {
	logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_error",
		logging.String("path", r.URL.Path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "run librarian doctor to check the database"),
	)
	s.writeError(w, http.StatusInternalServerError, err.Error())
}
