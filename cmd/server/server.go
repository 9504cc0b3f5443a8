// cmd/server/server.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/valpere/docnav/internal/config"
	"github.com/valpere/docnav/internal/monitoring"
	"github.com/valpere/docnav/internal/navigator"
	"github.com/valpere/docnav/internal/utils"
	"github.com/valpere/docnav/internal/viewer"
	"github.com/valpere/docnav/pkg/api"
	"github.com/valpere/docnav/pkg/types"
)

// SessionOpener opens a viewer session with the current configuration
type SessionOpener func(ctx context.Context, cfg *config.Config, url string, deps viewer.SessionDeps) (viewer.Session, error)

// browserOpener opens viewer pages in Chrome
func browserOpener(ctx context.Context, cfg *config.Config, url string, deps viewer.SessionDeps) (viewer.Session, error) {
	s, err := viewer.OpenBrowserSession(ctx, cfg, url, deps)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Server is the HTTP control surface over viewer sessions
type Server struct {
	mu      sync.RWMutex
	cfg     *config.Config
	limiter *utils.RateLimiter

	registry *viewer.Registry
	metrics  *monitoring.MetricsManager
	health   *monitoring.HealthManager
	logger   *zap.Logger
}

// NewServer wires the registry, metrics and health checks
func NewServer(cfg *config.Config, open SessionOpener, metrics *monitoring.MetricsManager, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		limiter: utils.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.Burst),
		metrics: metrics,
		health:  monitoring.NewHealthManager(version),
		logger:  logger,
	}

	s.registry = viewer.NewRegistry(func(ctx context.Context, url string) (viewer.Session, error) {
		deps := viewer.SessionDeps{
			Logger:   logger,
			OnResult: s.logResult,
		}
		if metrics != nil {
			deps.Recorder = metrics
		}
		return open(ctx, s.config(), url, deps)
	}, cfg.Server.MaxSessions)

	if metrics != nil {
		s.registry.OnOpen(func(viewer.Session) { metrics.SessionOpened() })
		s.registry.OnClose(func(viewer.Session) { metrics.SessionClosed() })
	}

	s.health.RegisterCheck(monitoring.HealthCheck{
		Name: "sessions",
		Check: func(context.Context) error {
			if n, limit := s.registry.Len(), s.registry.Limit(); n >= limit {
				return fmt.Errorf("session limit reached (%d/%d)", n, limit)
			}
			return nil
		},
	})
	s.health.RegisterCheck(monitoring.HealthCheck{
		Name:     "config",
		Critical: true,
		Check: func(context.Context) error {
			_, err := s.config().Durations()
			return err
		},
	})

	return s
}

func (s *Server) config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// ApplyConfig swaps the configuration used for sessions opened from now on
// and updates the rate and session limits. Open sessions keep their
// resolver settings; lowering the session limit closes nothing.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	s.registry.SetLimit(cfg.Server.MaxSessions)
	s.limiter.SetLimit(cfg.Server.RateLimit)
	if cfg.Server.Burst > 0 {
		s.limiter.SetBurst(cfg.Server.Burst)
	}
	s.logger.Info("Configuration applied",
		zap.String("name", cfg.Name),
		zap.Int("passes", cfg.Navigation.Passes),
		zap.Float64("rate_limit", cfg.Server.RateLimit))
}

func (s *Server) logResult(sessionID string, res navigator.Result) {
	s.logger.Info("Navigation finished",
		zap.String("session", sessionID),
		zap.Int("page", res.TargetPage),
		zap.Bool("success", res.Success),
		zap.String("strategy", res.Strategy))
}

// Routes builds the request router
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	r.Handle("/health", s.health.HealthHandler()).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle(s.config().Metrics.Path, s.metrics.Handler()).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(s.rateLimitMiddleware)
	v1.HandleFunc("/sessions", s.openSessionHandler).Methods(http.MethodPost)
	v1.HandleFunc("/sessions", s.listSessionsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{id}", s.getSessionHandler).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{id}", s.closeSessionHandler).Methods(http.MethodDelete)
	v1.HandleFunc("/sessions/{id}/navigate", s.navigateHandler).Methods(http.MethodPost)

	return s.loggingMiddleware(r)
}

// Close closes every open session
func (s *Server) Close() error {
	return s.registry.Close()
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("Request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) openSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req types.OpenSessionRequest
	if err := types.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// the session outlives the request, so it must not inherit its context
	session, err := s.registry.Open(context.WithoutCancel(r.Context()), req.URL)
	switch {
	case errors.Is(err, viewer.ErrRegistryFull):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case errors.Is(err, viewer.ErrRegistryClosed):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		s.logger.Warn("Failed to open session", zap.String("url", req.URL), zap.Error(err))
		writeError(w, http.StatusBadGateway, err)
		return
	}

	s.logger.Info("Session opened", zap.String("session", session.ID()), zap.String("url", req.URL))
	writeJSON(w, http.StatusCreated, api.SessionInfo(r.Context(), session))
}

func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions := s.registry.List()
	list := types.SessionList{Sessions: make([]types.SessionInfo, 0, len(sessions))}
	for _, session := range sessions {
		list.Sessions = append(list.Sessions, api.SessionInfo(r.Context(), session))
	}
	list.Count = len(list.Sessions)
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (viewer.Session, bool) {
	id := mux.Vars(r)["id"]
	session, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", viewer.ErrUnknownSession, id))
	}
	return session, ok
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, api.SessionInfo(r.Context(), session))
}

func (s *Server) navigateHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var req types.NavigateRequest
	if err := types.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resolver := session.Resolver()
	dispatched := resolver.NavigateToPage(*req.Page)
	if !dispatched && resolver.Closed() {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("session %s is closing", session.ID()))
		return
	}
	status := http.StatusAccepted
	if dispatched {
		status = http.StatusOK
	}
	writeJSON(w, status, types.NavigateResponse{Dispatched: dispatched, Page: *req.Page})
}

func (s *Server) closeSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := s.registry.Remove(id)
	if errors.Is(err, viewer.ErrUnknownSession) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.logger.Warn("Session closed with error", zap.String("session", id), zap.Error(err))
	}
	s.logger.Info("Session closed", zap.String("session", id))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, types.ErrorResponse{Error: err.Error(), Code: status})
}
