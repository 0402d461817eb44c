package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/domain"
	apperrors "github.com/rwhssa/rwhs-basketball-livestream/internal/platform/errors"
)

func (s *Server) registerTokenRoutes() {
	limiter := newRateLimiter(s.config.TokenRateLimit, s.config.TokenRateBurst)
	s.echo.GET("/api/token", s.handleToken, limiter)
}

// handleToken issues a media room grant for ?phase=<phase>&type=<role>.
func (s *Server) handleToken(c echo.Context) error {
	phase := c.QueryParam("phase")
	requestedType := c.QueryParam("type")

	grant, err := s.credentials.Issue(c.Request().Context(), phase, requestedType)
	if errors.Is(err, domain.ErrPhaseRequired) {
		return apperrors.ValidationError("phase is required", err).WithField("param", "phase")
	}
	if err != nil {
		return apperrors.InternalError("failed to issue token", err)
	}

	slog.InfoContext(c.Request().Context(), "Token issued",
		"room", grant.Room,
		"role", domain.ParseRole(requestedType).String(),
	)

	if err := c.JSON(http.StatusOK, grant); err != nil {
		return fmt.Errorf("failed to write token response: %w", err)
	}
	return nil
}
