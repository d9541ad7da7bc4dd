package client

import (
	"errors"
	"net/url"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{status: 200, want: ""},
		{status: 204, want: ""},
		{status: 400, want: ErrorClassClient},
		{status: 401, want: ErrorClassAuth},
		{status: 403, want: ErrorClassAuth},
		{status: 404, want: ErrorClassClient},
		{status: 500, want: ErrorClassServer},
		{status: 503, want: ErrorClassServer},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "http error",
			apiError: &APIError{
				StatusCode: 404,
				ErrorClass: ErrorClassClient,
				Method:     "GET",
				URL:        "https://www.the-datagarden.io/api/country/atlantis/",
				Message:    `{"detail": "not found"}`,
			},
			expected: `datagarden client error (status 404): GET https://www.the-datagarden.io/api/country/atlantis/: {"detail": "not found"}`,
		},
		{
			name: "network error with wrapped error",
			apiError: &APIError{
				ErrorClass: ErrorClassNetwork,
				Method:     "POST",
				URL:        "http://127.0.0.1:8000/user/token/",
				Message:    "request failed",
				Err:        errors.New("connection refused"),
			},
			expected: "datagarden network error: POST http://127.0.0.1:8000/user/token/: request failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.apiError.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := &url.Error{Op: "Post", URL: "http://x", Err: errors.New("timeout")}
	err := error(&APIError{ErrorClass: ErrorClassNetwork, Err: inner})

	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		t.Fatal("errors.As did not find wrapped *url.Error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("errors.As(*APIError) = %v", apiErr)
	}
}
