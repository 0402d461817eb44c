package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/domain"
	apperrors "github.com/rwhssa/rwhs-basketball-livestream/internal/platform/errors"
)

// maxScoreBody bounds POST /api/scores bodies.
const maxScoreBody = "1M"

func (s *Server) registerScoreRoutes() {
	s.echo.POST("/api/scores", s.handleSubmitScores, middleware.BodyLimit(maxScoreBody))
	s.echo.GET("/api/scores", s.handleGetScores)
}

// handleSubmitScores replaces the current snapshot and fans it out. The
// accepted snapshot is echoed back.
func (s *Server) handleSubmitScores(c echo.Context) error {
	var submitted domain.ScoreSnapshot
	if err := c.Bind(&submitted); err != nil {
		// a body that outgrows the limit while streaming keeps its 413
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) && httpErr.Code == http.StatusRequestEntityTooLarge {
			return err
		}
		return apperrors.ValidationError("invalid score payload", err)
	}

	accepted, err := s.app.SubmitScores(c.Request().Context(), submitted)
	if errors.Is(err, domain.ErrInvalidSnapshot) {
		return apperrors.ValidationError(err.Error(), err)
	}
	if err != nil {
		return apperrors.InternalError("failed to submit scores", err)
	}

	if err := c.JSON(http.StatusOK, accepted); err != nil {
		return fmt.Errorf("failed to write scores response: %w", err)
	}
	return nil
}

// handleGetScores returns the current snapshot, or 204 before the first
// submission.
func (s *Server) handleGetScores(c echo.Context) error {
	current, ok := s.app.CurrentScores()
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	if err := c.JSON(http.StatusOK, current); err != nil {
		return fmt.Errorf("failed to write scores response: %w", err)
	}
	return nil
}
