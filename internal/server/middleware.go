package server

import (
	"github.com/labstack/echo/v4"

	"github.com/rojikaru/article-ajax/internal/logging"
)

// requestIDMiddleware seeds a fresh request ID into the request context so
// every slog line emitted while handling the request carries it.
func requestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := logging.WithRequestID(c.Request().Context(), logging.NewRequestID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
