// Package server wires the HTTP and WebSocket surface: REST moderation
// endpoints, the auth session handlers and the realtime upgrade path.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/rojikaru/article-ajax/internal/config"
	"github.com/rojikaru/article-ajax/internal/domain"
	apperrors "github.com/rojikaru/article-ajax/internal/errors"
	"github.com/rojikaru/article-ajax/internal/realtime"
)

const (
	sessionName        = "article_session"
	sessionKeyUsername = "username"
	sessionKeyRole     = "role"
	sessionMaxAgeDays  = 7
)

type Server struct {
	echo          *echo.Echo
	config        *config.Config
	articles      domain.ArticleStore
	presence      domain.PresenceTracker
	registry      *realtime.Registry
	broadcaster   *realtime.Broadcaster
	authenticator domain.Authenticator
	sessionStore  *sessions.CookieStore
	limits        *ConnectionLimits

	// editingMu spans each presence mutation together with its broadcast
	// enqueue, so editing_status events reach the broadcaster in mutation
	// order even when read pumps race on the same article.
	editingMu sync.Mutex
}

func NewServer(
	cfg *config.Config,
	articles domain.ArticleStore,
	presence domain.PresenceTracker,
	registry *realtime.Registry,
	broadcaster *realtime.Broadcaster,
	authenticator domain.Authenticator,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(requestIDMiddleware)
	e.Use(apperrors.Middleware())

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * sessionMaxAgeDays,
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}

	srv := &Server{
		echo:          e,
		config:        cfg,
		articles:      articles,
		presence:      presence,
		registry:      registry,
		broadcaster:   broadcaster,
		authenticator: authenticator,
		sessionStore:  sessionStore,
		limits:        NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// --- Response envelope ---

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondData(c echo.Context, status int, data any) error {
	if err := c.JSON(status, response{Success: true, Data: data}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func respond(c echo.Context, status int, message string, data any) error {
	if err := c.JSON(status, response{Success: true, Message: message, Data: data}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
