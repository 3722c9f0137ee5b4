package client

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		expected   ErrorClass
	}{
		{name: "not found", statusCode: 404, expected: ErrorClassClient},
		{name: "bad request", statusCode: 400, expected: ErrorClassClient},
		{name: "too many requests", statusCode: 429, expected: ErrorClassRateLimit},
		{name: "internal server error", statusCode: 500, expected: ErrorClassServer},
		{name: "service unavailable", statusCode: 503, expected: ErrorClassServer},
		{name: "success", statusCode: 200, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyStatus(tt.statusCode); got != tt.expected {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestUpstreamError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *UpstreamError
		expected string
	}{
		{
			name: "error with wrapped error",
			err: &UpstreamError{
				Upstream:   "coingecko",
				StatusCode: 0,
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        errors.New("connection refused"),
			},
			expected: "coingecko network error (status 0): request failed: connection refused",
		},
		{
			name: "error without wrapped error",
			err: &UpstreamError{
				Upstream:   "coingecko",
				StatusCode: 404,
				ErrorClass: ErrorClassClient,
				Message:    "coingecko API error 404: not found",
			},
			expected: "coingecko client error (status 404): coingecko API error 404: not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestUpstreamError_Unwrap(t *testing.T) {
	wrappedErr := errors.New("wrapped error")
	upstreamErr := &UpstreamError{
		Upstream:   "exchangerate",
		ErrorClass: ErrorClassNetwork,
		Err:        wrappedErr,
	}

	if !errors.Is(upstreamErr, wrappedErr) {
		t.Error("errors.Is should work with wrapped error")
	}

	var target *UpstreamError
	if !errors.As(error(upstreamErr), &target) {
		t.Error("errors.As should find *UpstreamError")
	}
}

func TestTimeoutError_Is(t *testing.T) {
	timeoutErr := &TimeoutError{
		Upstream: "exchangerate",
		Timeout:  5 * time.Second,
		Err:      context.DeadlineExceeded,
	}

	if !errors.Is(timeoutErr, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) should be true")
	}
	if !errors.Is(timeoutErr, context.DeadlineExceeded) {
		t.Error("errors.Is should reach the wrapped deadline error")
	}
	if !strings.Contains(timeoutErr.Error(), "timed out after 5s") {
		t.Errorf("Error() = %q, want timeout duration", timeoutErr.Error())
	}
}

func TestTruncateBody(t *testing.T) {
	long := strings.Repeat("x", 500)
	if got := truncateBody([]byte(long)); len(got) != maxErrorBody {
		t.Errorf("len(truncateBody) = %d, want %d", len(got), maxErrorBody)
	}

	short := `{"error":"rate limited"}`
	if got := truncateBody([]byte(short)); got != short {
		t.Errorf("truncateBody() = %q, want %q", got, short)
	}

	// "€" is three bytes; byte 100 falls inside the rune starting at 99
	multi := strings.Repeat("x", 99) + strings.Repeat("€", 10)
	got := truncateBody([]byte(multi))
	if !utf8.ValidString(got) {
		t.Errorf("truncateBody() split a rune: %q", got)
	}
	if want := strings.Repeat("x", 99); got != want {
		t.Errorf("truncateBody() = %q, want %q", got, want)
	}
}
