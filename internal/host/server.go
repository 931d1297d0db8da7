package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/agent0ai/a0-launcher/internal/logging"
)

const readHeaderTimeout = 10 * time.Second

// Server serves the live content directory and the launcher API.
type Server struct {
	contentDir string
	bridge     *Bridge
	feed       *Feed
	metrics    http.Handler
	logger     *zap.SugaredLogger

	router chi.Router

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithServerLogger sets the logger.
func WithServerLogger(l *zap.SugaredLogger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a Server for contentDir. feed may be nil.
func NewServer(contentDir string, bridge *Bridge, feed *Feed, opts ...ServerOption) *Server {
	s := &Server{
		contentDir: contentDir,
		bridge:     bridge,
		feed:       feed,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Named("host")
	}
	if s.feed == nil {
		s.feed = NewFeed()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NoCache)
		r.Get("/app-version", s.appVersion)
		r.Get("/content-version", s.contentVersion)
		r.Get("/status", s.status)
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	r.Handle("/*", http.FileServer(http.Dir(contentDir)))
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on addr and serves in the background. It returns the base URL.
func (s *Server) Start(addr string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return "", fmt.Errorf("server already started")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.srv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorw("content host stopped", "error", err)
		}
	}(s.srv)

	url := "http://" + ln.Addr().String() + "/"
	s.logger.Infow("serving content", "url", url, "dir", s.contentDir)
	return url, nil
}

// Shutdown stops the server started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.listener = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) appVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"version": s.bridge.AppVersion()})
}

func (s *Server) contentVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"version": s.bridge.ContentVersion()})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.feed.Snapshot())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.L().Warnw("write json response", "error", err)
	}
}
