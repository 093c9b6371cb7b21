package server

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/rojikaru/article-ajax/internal/domain"
	apperrors "github.com/rojikaru/article-ajax/internal/errors"
)

// requireAuth resolves the identity from the cookie session and stashes
// it in the request context. The identity is always per-request, never
// process-wide.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, ok := s.sessionIdentity(c)
		if !ok {
			return apperrors.UnauthenticatedError("Authentication required")
		}
		c.Set("identity", ident)
		c.Set("username", ident.Username)
		return next(c)
	}
}

// requireModerator runs after requireAuth and enforces the binary role check.
func (s *Server) requireModerator(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, ok := c.Get("identity").(domain.Identity)
		if !ok || !ident.IsModerator() {
			return apperrors.ForbiddenError("Access denied. Moderator rights required.")
		}
		return next(c)
	}
}

func (s *Server) sessionIdentity(c echo.Context) (domain.Identity, bool) {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return domain.Identity{}, false
	}

	username, ok := session.Values[sessionKeyUsername].(string)
	if !ok || username == "" {
		return domain.Identity{}, false
	}
	role, ok := session.Values[sessionKeyRole].(string)
	if !ok {
		return domain.Identity{}, false
	}

	return domain.Identity{Username: username, Role: domain.Role(role)}, true
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	ident, ok := s.authenticator.Authenticate(req.Username, req.Password)
	if !ok {
		return apperrors.UnauthenticatedError("Invalid credentials")
	}

	session, _ := s.sessionStore.Get(c.Request(), sessionName)
	session.Values[sessionKeyUsername] = ident.Username
	session.Values[sessionKeyRole] = string(ident.Role)
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save session", err)
	}

	return respondData(c, 200, map[string]any{"user": ident})
}

func (s *Server) handleLogout(c echo.Context) error {
	session, _ := s.sessionStore.Get(c.Request(), sessionName)
	session.Options.MaxAge = -1
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to clear session", err)
	}

	if err := c.JSON(200, response{Success: true, Message: "Logged out successfully"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleMe(c echo.Context) error {
	ident, ok := s.sessionIdentity(c)
	if !ok {
		return apperrors.UnauthenticatedError("Not authenticated")
	}
	return respondData(c, 200, map[string]any{"user": ident})
}
