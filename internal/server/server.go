package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sendrec/askvideo/internal/docs"
	"github.com/sendrec/askvideo/internal/host"
	"github.com/sendrec/askvideo/internal/httputil"
	"github.com/sendrec/askvideo/internal/languages"
	"github.com/sendrec/askvideo/internal/panel"
	"github.com/sendrec/askvideo/internal/ratelimit"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendChecker reports whether the question-answering backend is up.
type BackendChecker interface {
	Health(ctx context.Context) error
}

// HostGateway accepts the browser shim's WebSocket.
type HostGateway interface {
	http.Handler
	Status() host.Status
}

type Config struct {
	Panels  *panel.Manager
	Backend BackendChecker
	Host    HostGateway
	// Pinger checks the preferences database, when there is one.
	Pinger                Pinger
	BaseURL               string
	AllowedFrameAncestors string
	EnableDocs            bool
	// AskLimiter throttles questions. Defaults to the backend's own
	// three per minute.
	AskLimiter *ratelimit.Limiter
}

type Server struct {
	router     chi.Router
	panels     *panel.Manager
	backend    BackendChecker
	host       HostGateway
	pinger     Pinger
	askLimiter *ratelimit.Limiter
	enableDocs bool
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:               cfg.BaseURL,
		AllowedFrameAncestors: cfg.AllowedFrameAncestors,
	}))

	s := &Server{
		router:     r,
		panels:     cfg.Panels,
		backend:    cfg.Backend,
		host:       cfg.Host,
		pinger:     cfg.Pinger,
		askLimiter: cfg.AskLimiter,
		enableDocs: cfg.EnableDocs,
	}
	if s.askLimiter == nil {
		s.askLimiter = ratelimit.PerMinute(3)
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.askLimiter.Stop()
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/speech-languages", s.handleSpeechLanguages)

	if s.panels != nil {
		s.router.Route("/api/panel", func(r chi.Router) {
			r.Get("/", s.handleGetPanel)
			r.Post("/", s.handleOpenPanel)
			r.Delete("/", s.handleClosePanel)
			r.With(s.askLimiter.Middleware).Post("/ask", s.handleAsk)
			r.Post("/voice", s.handleToggleVoice)
			r.Post("/clear-cache", s.handleClearCache)
			r.Post("/messages/{message}/markers/{marker}/activate", s.handleActivateMarker)
		})
		s.router.Get("/api/preferences", s.handleGetPreferences)
		s.router.Put("/api/preferences", s.handleUpdatePreferences)
		s.router.Get("/", s.handlePanelPage)
	}

	if s.host != nil {
		s.router.Get("/ws/host", s.host.ServeHTTP)
	}

	if s.enableDocs {
		s.router.Get("/api/docs", docs.HandleDocs)
		s.router.Get("/api/docs/openapi.yaml", docs.HandleSpec)
	}
}

type healthResponse struct {
	Status  string       `json:"status"`
	Backend string       `json:"backend,omitempty"`
	Host    *host.Status `json:"host,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// handleHealth fails only when the preferences database is unreachable. An
// unreachable backend or a missing browser is reported but does not make the
// daemon unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}

	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable,
				healthResponse{Status: "unhealthy", Error: "database unreachable"})
			return
		}
	}

	if s.backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		resp.Backend = "ok"
		if err := s.backend.Health(ctx); err != nil {
			resp.Backend = "unreachable"
		}
	}

	if s.host != nil {
		status := s.host.Status()
		resp.Host = &status
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSpeechLanguages(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, languages.SpeechLanguages())
}
