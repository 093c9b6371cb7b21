package server

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/rojikaru/article-ajax/internal/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	payload := map[string]any{
		"status": "ok",
		"build":  version.Get(),
	}
	if err := c.JSON(200, payload); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleReadiness(c echo.Context) error {
	payload := map[string]any{
		"status":            "ok",
		"connected_clients": s.registry.Len(),
		"connections":       s.limits.Current(),
	}
	if err := c.JSON(200, payload); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
