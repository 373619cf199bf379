package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"phototag/internal/api"
	"phototag/internal/config"
	"phototag/internal/logging"
)

type apiServer struct {
	bind      string
	token     string
	maxUpload int64
	logger    *slog.Logger
	daemon    *Daemon
	photos    *api.PhotoService

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	handler  http.Handler
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:      strings.TrimSpace(cfg.API.Bind),
		token:     cfg.API.Token,
		maxUpload: cfg.API.MaxUploadBytes(),
		logger:    logging.NewComponentLogger(logger, "api-server"),
		daemon:    d,
		photos:    api.NewPhotoService(d.store),
	}
	srv.handler = srv.routes()

	readTimeout := time.Duration(cfg.API.ReadTimeoutSec) * time.Second
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	srv.server = &http.Server{
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/", s.handleRoot)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.token))
		r.Post("/upload", s.handleUpload)
		r.Get("/photos", s.handleListPhotos)
		r.Get("/photos/{id}", s.handleGetPhoto)
		r.Get("/queue", s.handleQueue)
		r.Get("/queue/stats", s.handleQueueStats)
		r.Get("/status", s.handleStatus)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.logger.Info("api server disabled")
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.listener = nil
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
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
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

// Handler exposes the API router, mainly for tests and embedding.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler
}
