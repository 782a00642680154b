package server

import (
	"errors"
	"log/slog"

	"postdesk/internal/middleware"
	"postdesk/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint. No post can
// have any other id, so on failure it writes the 404 envelope and returns
// errResponseWritten.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Post"), false)
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// respondError writes err with the status it maps to. Unexpected errors are
// logged and reported as 500, with the cause exposed outside production.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
		var appErr *models.AppError
		if !errors.As(err, &appErr) {
			err = models.NewInternalError(err)
		}
	}
	return models.RespondWithError(c, status, err, !s.config.IsProduction())
}
