package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrNoContent is returned when a request succeeds without a body.
	ErrNoContent = errors.New("no content")

	// ErrInvalidMethod is returned for HTTP methods other than GET and POST.
	ErrInvalidMethod = errors.New("invalid method")

	// ErrMissingCredentials is returned when no email or password is configured.
	ErrMissingCredentials = errors.New("missing credentials")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassAuth represents 401/403 responses.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError represents a failed Data Garden API request.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Method     string
	URL        string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("datagarden %s error: %s %s: %s: %v",
			e.ErrorClass, e.Method, e.URL, e.Message, e.Err)
	}
	return fmt.Sprintf("datagarden %s error (status %d): %s %s: %s",
		e.ErrorClass, e.StatusCode, e.Method, e.URL, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 401 || status == 403:
		return ErrorClassAuth
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
