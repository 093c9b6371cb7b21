package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Auth
	s.echo.POST("/api/auth/login", s.handleLogin)
	s.echo.POST("/api/auth/logout", s.handleLogout)
	s.echo.GET("/api/auth/me", s.handleMe)

	// Articles (public listing, authenticated writes, moderator decisions)
	s.echo.GET("/api/articles", s.handleListArticles)
	s.echo.GET("/api/articles/pending", s.handleListPending, s.requireAuth, s.requireModerator)
	s.echo.POST("/api/articles", s.handleCreateArticle, s.requireAuth)
	s.echo.PUT("/api/articles/:id", s.handleSubmitEdit, s.requireAuth)
	s.echo.POST("/api/articles/:id/approve", s.handleApprove, s.requireAuth, s.requireModerator)
	s.echo.POST("/api/articles/:id/reject", s.handleReject, s.requireAuth, s.requireModerator)

	// Realtime endpoint (identity arrives in the register message)
	s.echo.GET("/ws", s.handleWebSocket)
}
