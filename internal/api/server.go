package api

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.io/infrasutra/docreg/internal/auth"
	"github.io/infrasutra/docreg/internal/config"
	"github.io/infrasutra/docreg/internal/documents"
	"github.io/infrasutra/docreg/internal/session"
	"github.io/infrasutra/docreg/internal/sse"
	webassets "github.io/infrasutra/docreg/web"
)

type Server struct {
	cfg       config.Config
	sessions  *session.Manager
	auth      *auth.Authenticator
	cookies   *auth.Cookies
	documents *documents.Service
	hub       *sse.Hub
	logger    *slog.Logger
	now       func() time.Time
	templates *template.Template
	static    http.Handler
	mux       *http.ServeMux
	handler   http.Handler

	closing   chan struct{}
	closeOnce sync.Once
}

type Option func(*Server)

// WithClock replaces time.Now for session bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func NewServer(cfg config.Config, sessions *session.Manager, authenticator *auth.Authenticator, cookies *auth.Cookies,
	docs *documents.Service, hub *sse.Hub, logger *slog.Logger, opts ...Option) (*Server, error) {
	templatesFS, err := webassets.Templates()
	if err != nil {
		return nil, err
	}
	templates, err := template.ParseFS(templatesFS, "*.html")
	if err != nil {
		return nil, err
	}
	staticFS, err := webassets.Static()
	if err != nil {
		return nil, err
	}

	server := &Server{
		cfg:       cfg,
		sessions:  sessions,
		auth:      authenticator,
		cookies:   cookies,
		documents: docs,
		hub:       hub,
		logger:    logger,
		now:       time.Now,
		templates: templates,
		static:    http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))),
		closing:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(server)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", server.handleLogin)
	mux.HandleFunc("/logout", server.handleLogout)
	mux.HandleFunc("/documents", server.handleSubmit)
	mux.HandleFunc("/events", server.handleStream)
	mux.HandleFunc("/api/me", server.handleMe)
	mux.HandleFunc("/api/documents", server.handleRecords)
	server.mux = mux
	server.handler = requestLogger(logger, http.HandlerFunc(server.route))
	return server, nil
}

// CloseStreams ends every open event stream. http.Server.Shutdown does not
// interrupt active handlers, so it is registered with RegisterOnShutdown.
func (s *Server) CloseStreams() {
	s.closeOnce.Do(func() {
		close(s.closing)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/":
		s.handleIndex(w, r)
	case path == "/health":
		s.respondText(w, http.StatusOK, "ok")
	case path == "/ready":
		s.respondText(w, http.StatusOK, "ready")
	case strings.HasPrefix(path, "/static/"):
		s.static.ServeHTTP(w, r)
	default:
		s.mux.ServeHTTP(w, r)
	}
}
