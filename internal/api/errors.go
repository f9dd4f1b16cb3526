package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/moogar0880/problems"

	"fundops/backend/internal/services"
)

const problemContentType = "application/problem+json"

func writeProblem(c echo.Context, p *problems.Problem) error {
	c.Response().Header().Set(echo.HeaderContentType, problemContentType)
	return c.JSON(p.Status, p)
}

func badRequest(c echo.Context, detail string) error {
	return writeProblem(c, problems.NewStatusProblem(http.StatusBadRequest).
		WithInstance(c.Request().URL.Path).
		WithType("validation_error").
		WithDetail(detail))
}

func notFound(c echo.Context, detail string) error {
	return writeProblem(c, problems.NewStatusProblem(http.StatusNotFound).
		WithInstance(c.Request().URL.Path).
		WithType("not_found").
		WithDetail(detail))
}

// validationDetail flattens validator errors into one line.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Namespace()+" failed on "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}

// handleServiceError maps service error kinds to problem documents.
func (s *Server) handleServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return notFound(c, err.Error())

	case errors.Is(err, services.ErrValidation):
		return badRequest(c, err.Error())

	case errors.Is(err, services.ErrInvalidTransition):
		return writeProblem(c, problems.NewStatusProblem(http.StatusBadRequest).
			WithInstance(c.Request().URL.Path).
			WithType("invalid_transition").
			WithDetail(err.Error()))

	default:
		s.logger.Error("request failed", "path", c.Request().URL.Path, "method", c.Request().Method, "error", err)
		return writeProblem(c, problems.NewStatusProblem(http.StatusInternalServerError).
			WithInstance(c.Request().URL.Path).
			WithType("internal_error").
			WithDetail("internal server error"))
	}
}

// HTTPErrorHandler renders echo's own errors (unknown routes, bad methods,
// panics caught by Recover) as problem documents.
func HTTPErrorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		detail := "internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if msg, ok := he.Message.(string); ok {
				detail = msg
			} else {
				detail = http.StatusText(status)
			}
		}
		p := problems.NewStatusProblem(status).
			WithInstance(c.Request().URL.Path).
			WithDetail(detail)
		if werr := writeProblem(c, p); werr != nil {
			e.Logger.Error(werr)
		}
	}
}
