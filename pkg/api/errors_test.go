package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Sternrassler/market-dashboard-proxy/pkg/client"
	"github.com/Sternrassler/market-dashboard-proxy/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "validation", err: &ValidationError{Message: "bad"}, expected: http.StatusBadRequest},
		{name: "not found", err: &NotFoundError{Message: "missing"}, expected: http.StatusNotFound},
		{name: "timeout", err: &client.TimeoutError{Upstream: "exchangerate", Err: context.DeadlineExceeded}, expected: http.StatusGatewayTimeout},
		{name: "upstream 429", err: &client.UpstreamError{StatusCode: 429, ErrorClass: client.ErrorClassRateLimit}, expected: http.StatusTooManyRequests},
		{name: "upstream 503", err: &client.UpstreamError{StatusCode: 503, ErrorClass: client.ErrorClassServer}, expected: http.StatusServiceUnavailable},
		{name: "upstream without status", err: &client.UpstreamError{ErrorClass: client.ErrorClassNetwork}, expected: http.StatusInternalServerError},
		{name: "decode", err: &client.UpstreamError{StatusCode: 502, ErrorClass: client.ErrorClassDecode}, expected: http.StatusBadGateway},
		{name: "no samples", err: fmt.Errorf("%w: %w", history.ErrNoSamples, &client.UpstreamError{StatusCode: 500}), expected: http.StatusBadGateway},
		{name: "wrapped validation", err: fmt.Errorf("parse: %w", &ValidationError{Message: "bad"}), expected: http.StatusBadRequest},
		{name: "unknown", err: errors.New("boom"), expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, statusFor(tt.err))
		})
	}
}

func TestWriteError_Envelope(t *testing.T) {
	upstreamErr := &client.UpstreamError{
		Upstream:   "coingecko",
		StatusCode: 500,
		ErrorClass: client.ErrorClassServer,
		Message:    "coingecko API error 500: oops",
	}

	tests := []struct {
		name     string
		err      error
		policy   errorPolicy
		expected ErrorResponse
	}{
		{
			name:     "validation message is the error",
			err:      &ValidationError{Message: "Missing required parameters: from and to"},
			expected: ErrorResponse{Error: "Missing required parameters: from and to"},
		},
		{
			name:     "timeout",
			err:      &client.TimeoutError{Upstream: "exchangerate", Err: context.DeadlineExceeded},
			expected: ErrorResponse{Error: timeoutMessage},
		},
		{
			name:     "upstream echoed",
			err:      upstreamErr,
			policy:   errorPolicy{EchoUpstream: true},
			expected: ErrorResponse{Error: "Failed to fetch", Message: "coingecko API error 500: oops"},
		},
		{
			name:     "upstream hidden in production",
			err:      upstreamErr,
			expected: ErrorResponse{Error: "Failed to fetch"},
		},
		{
			name:     "upstream detail in development",
			err:      upstreamErr,
			policy:   errorPolicy{Development: true},
			expected: ErrorResponse{Error: "Failed to fetch", Details: upstreamErr.Error()},
		},
		{
			name:     "internal hidden in production",
			err:      errors.New("nil map"),
			expected: ErrorResponse{Error: "Failed to fetch"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/rate", nil)
			w := httptest.NewRecorder()

			writeError(w, req, "Failed to fetch", tt.err, tt.policy)

			var got ErrorResponse
			decode(t, w, &got)
			require.Equal(t, statusFor(tt.err), w.Code)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestInternalErrorResponse(t *testing.T) {
	assert.Equal(t, "An error occurred", internalErrorResponse("boom", false).Message)
	assert.Equal(t, "boom", internalErrorResponse("boom", true).Message)
	assert.Equal(t, "Internal server error", internalErrorResponse("boom", true).Error)
}
