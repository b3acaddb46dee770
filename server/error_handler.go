package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-auth-client/users"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Structured error codes returned in the "code" field.
const (
	CodeUserExists      = "USER_EXISTS"
	CodeUserNotFound    = "USER_NOT_FOUND"
	CodeValidation      = "VALIDATION_FAILED"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeInvalidIdentity = "INVALID_IDENTITY_TOKEN"
	CodeInternal        = "INTERNAL"
)

// APIError is rendered as {"code", "message", "errors"}.
type APIError struct {
	Status  int               `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func newAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

// NewHTTPErrorHandler maps handler errors to the JSON error envelope and
// logs anything unexpected.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		apiErr := resolveError(err, log, c)
		_ = c.JSON(apiErr.Status, apiErr)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code := CodeInternal
		switch he.Code {
		case http.StatusUnauthorized:
			code = CodeUnauthorized
		case http.StatusBadRequest:
			code = CodeValidation
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			code = http.StatusText(he.Code)
		}
		return newAPIError(he.Code, code, fmt.Sprintf("%v", he.Message))
	}

	switch {
	case errors.Is(err, users.ErrUserExists):
		return newAPIError(http.StatusConflict, CodeUserExists, "User already exists")
	case errors.Is(err, users.ErrUserNotFound):
		return newAPIError(http.StatusNotFound, CodeUserNotFound, "User not found")
	}

	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")
	return newAPIError(http.StatusInternalServerError, CodeInternal, "internal server error")
}
