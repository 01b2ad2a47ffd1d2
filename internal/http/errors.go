package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/project"
)

// Client-facing failure messages.
const (
	msgNotFound        = "Project not found."
	msgOwnerNotFound   = "No projects found for this user."
	msgUnauthorized    = "Unauthorized."
	msgBanned          = "User is banned."
	msgMissingID       = "Missing projectId."
	msgInvalidBody     = "Invalid request body."
	msgRateLimited     = "Rate limit exceeded."
	msgBusy            = "Project is busy, try again."
	msgInternal        = "Internal server error."
	msgRouteNotFound   = "Not found."
	msgMethodForbidden = "Method not allowed."
)

// apiError is a failure with a chosen status and client message.
type apiError struct {
	code    int
	message string
	err     error
}

func (e *apiError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%d %s: %v", e.code, e.message, e.err)
	}
	return fmt.Sprintf("%d %s", e.code, e.message)
}

func (e *apiError) Unwrap() error {
	return e.err
}

func newAPIError(code int, message string, err error) *apiError {
	return &apiError{code: code, message: message, err: err}
}

// statusFor maps an error to its HTTP status and client message.
func statusFor(err error) (int, string) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.code, apiErr.message
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.Code {
		case http.StatusNotFound:
			return httpErr.Code, msgRouteNotFound
		case http.StatusMethodNotAllowed:
			return httpErr.Code, msgMethodForbidden
		}
		if msg, ok := httpErr.Message.(string); ok {
			return httpErr.Code, msg
		}
		return httpErr.Code, http.StatusText(httpErr.Code)
	}

	switch {
	case errors.Is(err, project.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, project.ErrUnauthorized):
		return http.StatusForbidden, msgUnauthorized
	case errors.Is(err, project.ErrForbidden):
		return http.StatusForbidden, msgBanned
	case errors.Is(err, project.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, project.ErrContention):
		return http.StatusServiceUnavailable, msgBusy
	}
	return http.StatusInternalServerError, msgInternal
}

// handleError writes every failure in the {status, message} envelope.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, message := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.Error(err))
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(code)
	} else {
		writeErr = c.JSON(code, ErrorResponse{Status: statusError, Message: message})
	}
	if writeErr != nil {
		s.logger.Warn("failed to write error response", zap.Error(writeErr))
	}
}
