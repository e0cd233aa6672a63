package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/Clark-Hu/movies-db/internal/config"
	"github.com/Clark-Hu/movies-db/internal/metrics"
	"github.com/Clark-Hu/movies-db/internal/repository"
	"github.com/Clark-Hu/movies-db/internal/session"
)

// Server wires HTTP routing, middleware, and the session endpoint.
type Server struct {
	cfg        config.Config
	movies     *repository.Movies
	dispatcher *session.Dispatcher
	metrics    *metrics.Collector
	logger     *log.Logger
	router     chi.Router
	httpSrv    *http.Server
	upgrader   websocket.Upgrader

	sessionsCtx    context.Context
	cancelSessions context.CancelFunc
	sessionsMu     sync.Mutex // orders sessions.Add against Shutdown
	closing        bool
	sessions       sync.WaitGroup
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, movies *repository.Movies, m *metrics.Collector, logger *log.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if logger == nil {
		logger = log.Default()
	}

	sessionsCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:            cfg,
		movies:         movies,
		dispatcher:     session.NewDispatcher(movies, m, logger),
		metrics:        m,
		logger:         logger,
		router:         r,
		upgrader:       websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		sessionsCtx:    sessionsCtx,
		cancelSessions: cancel,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/session", s.handleSession)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
}

// Handler exposes the router, mainly for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start boots the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown stops accepting connections, closes open sessions and waits for
// them to finish or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}
	s.sessionsMu.Lock()
	s.closing = true
	s.sessionsMu.Unlock()
	s.cancelSessions()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

type healthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Records int    `json:"records"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	info := s.movies.Info()
	if err := s.movies.HealthCheck(ctx); err != nil {
		s.logger.Printf("healthz: %s backend unavailable: %v", info.Backend, err)
		s.respondJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Backend: info.Backend})
		return
	}
	s.respondJSON(w, http.StatusOK, healthResponse{Status: "ok", Backend: info.Backend, Records: info.Size})
}

// beginSession registers a session unless Shutdown has started.
func (s *Server) beginSession() bool {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	if s.closing {
		return false
	}
	s.sessions.Add(1)
	return true
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if !s.beginSession() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.sessions.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.logger.Printf("session upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	conn.SetReadLimit(int64(s.cfg.SessionReadLimit))

	sess := session.New(newWSConn(conn), s.dispatcher, s.metrics, s.logger)
	s.logger.Printf("session %s: client %s", sess.ID(), r.RemoteAddr)
	_ = sess.Serve(s.sessionsCtx)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Printf("failed to encode response: %v", err)
		}
	}
}
