package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/platform/correlation"
)

// correlationMiddleware tags the request context with the caller's
// X-Request-ID, or a fresh id, and echoes it back.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromHeader(c.Request().Header.Get(correlation.Header))
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlation.Header, id)
		return next(c)
	}
}
