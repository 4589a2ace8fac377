package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/pagerating/internal/adapter/metrics"
	"github.com/pscheid92/pagerating/internal/app"
	"github.com/pscheid92/pagerating/internal/domain"
	"github.com/pscheid92/pagerating/internal/platform/config"
)

type ratingService interface {
	Rating(ctx context.Context, profileID, pageURL string) (app.Rating, error)
	Vote(ctx context.Context, profileID, pageURL string, kind domain.VoteKind) (app.VoteResult, error)
}

type viewHub interface {
	Register(channel string, conn *websocket.Conn) error
	Unregister(channel string, conn *websocket.Conn)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	ratings ratingService
	hub     viewHub

	upgrader       websocket.Upgrader
	conns          *connectionLimits
	sessionStore   *sessions.CookieStore
	metricsHandler http.Handler
	httpMetrics    *metrics.HTTPMetrics
	healthChecks   []HealthCheck
	startTime      time.Time
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithMetrics exposes handler on /metrics and records request metrics in m.
func WithMetrics(handler http.Handler, m *metrics.HTTPMetrics) Option {
	return func(s *Server) {
		s.metricsHandler = handler
		s.httpMetrics = m
	}
}

// WithHealthChecks sets the checks run by the readiness endpoint.
func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) { s.healthChecks = checks }
}

// WithCheckOrigin sets the websocket origin policy. All origins are accepted otherwise.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = check }
}

func NewServer(cfg *config.Config, ratings ratingService, hub viewHub, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:    e,
		config:  cfg,
		ratings: ratings,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns:        newConnectionLimits(cfg.WSMaxConnections, cfg.WSMaxConnectionsPerIP),
		sessionStore: setupSessionStore(cfg),
		startTime:    time.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets tests drive the full middleware chain.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// The widget runs on third-party pages, so in production the profile cookie
// must be sent cross-site, which browsers only allow with Secure.
func setupSessionStore(cfg *config.Config) *sessions.CookieStore {
	sameSite := http.SameSiteLaxMode
	if cfg.IsProduction() {
		sameSite = http.SameSiteNoneMode
	}

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: sameSite,
	}
	return sessionStore
}
