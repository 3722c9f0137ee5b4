package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/market-dashboard-proxy/pkg/client"
	"github.com/Sternrassler/market-dashboard-proxy/pkg/history"
	"github.com/rs/zerolog/hlog"
)

// ValidationError reports missing or invalid request input.
type ValidationError struct {
	Message string
}

// Error implements error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError reports a derived resource absent from the upstream payload.
type NotFoundError struct {
	Message string
}

// Error implements error interface.
func (e *NotFoundError) Error() string {
	return e.Message
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

const timeoutMessage = "API request timeout - please try again"

// errorPolicy controls how much detail an endpoint family echoes back.
type errorPolicy struct {
	// Development echoes internal error detail in the details field
	Development bool

	// EchoUpstream puts the upstream error message in the message field
	EchoUpstream bool
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	var validationErr *ValidationError
	var notFoundErr *NotFoundError
	var upstreamErr *client.UpstreamError

	switch {
	case errors.Is(err, history.ErrNoSamples):
		return http.StatusBadGateway
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.Is(err, client.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &upstreamErr):
		if upstreamErr.StatusCode >= 400 {
			return upstreamErr.StatusCode
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as an ErrorResponse. action names the failed
// operation (e.g., "Failed to fetch coins") for upstream and internal errors.
func writeError(w http.ResponseWriter, r *http.Request, action string, err error, policy errorPolicy) {
	status := statusFor(err)
	logger := hlog.FromRequest(r)

	var body ErrorResponse
	var validationErr *ValidationError
	var notFoundErr *NotFoundError
	var upstreamErr *client.UpstreamError

	switch {
	case errors.Is(err, history.ErrNoSamples):
		body.Error = action
		if policy.Development {
			body.Details = err.Error()
		}
	case errors.As(err, &validationErr):
		body.Error = validationErr.Message
	case errors.As(err, &notFoundErr):
		body.Error = notFoundErr.Message
	case status == http.StatusGatewayTimeout:
		body.Error = timeoutMessage
	case errors.As(err, &upstreamErr) && policy.EchoUpstream:
		body.Error = action
		body.Message = upstreamErr.Message
	default:
		body.Error = action
		if policy.Development {
			body.Details = err.Error()
		}
	}

	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status_code", status).Msg(action)
	} else {
		logger.Warn().Err(err).Int("status_code", status).Msg("Request rejected")
	}

	writeJSON(w, status, body)
}

// internalErrorResponse is the envelope written when a handler panics.
func internalErrorResponse(recovered any, development bool) ErrorResponse {
	resp := ErrorResponse{
		Error:   "Internal server error",
		Message: "An error occurred",
	}
	if development {
		resp.Message = fmt.Sprint(recovered)
	}
	return resp
}
