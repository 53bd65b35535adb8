package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"energy-dashboard/internal/auth"
	"energy-dashboard/internal/dashboard"
	"energy-dashboard/internal/exporter"
	"energy-dashboard/internal/logger"

	"github.com/go-chi/render"
)

// ErrNoSnapshot is returned by routes that need a published snapshot before
// the first refresh succeeded.
var ErrNoSnapshot = errors.New("no snapshot published yet")

// errInvalidRequest marks malformed request bodies and parameters.
var errInvalidRequest = errors.New("invalid request")

// APIError is the JSON error body of every failed request.
type APIError struct {
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string { return e.Message }

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

type errorMapping struct {
	target error
	status int
	code   string
}

// mappings is checked in order; the first errors.Is match wins.
var mappings = []errorMapping{
	{dashboard.ErrUnknownProduct, http.StatusNotFound, "unknown_product"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{auth.ErrTOTPRequired, http.StatusUnauthorized, "totp_required"},
	{auth.ErrSessionNotFound, http.StatusUnauthorized, "unauthorized"},
	{exporter.ErrUnsupportedFormat, http.StatusBadRequest, "unsupported_format"},
	{errInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{ErrNoSnapshot, http.StatusServiceUnavailable, "no_snapshot"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// toAPIError maps err to its HTTP representation. Unmapped errors are 500s
// and never leak their message.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return &APIError{StatusCode: m.status, ErrorCode: m.code, Message: err.Error()}
		}
	}
	return &APIError{
		StatusCode: http.StatusInternalServerError,
		ErrorCode:  "internal",
		Message:    "internal server error",
	}
}

// renderError writes err as a JSON error body, logging server-side failures.
func renderError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	apiErr := toAPIError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		args := append(logger.LogWithTrace(r.Context()),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		log.ErrorContext(r.Context(), "request failed", args...)
	}
	render.Render(w, r, apiErr)
}
