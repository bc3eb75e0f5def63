package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/zip-ingest/pkg/yelp"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// Yelp error codes with special handling.
const (
	CodeAccessLimitReached = "ACCESS_LIMIT_REACHED"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS_PER_SECOND"
)

// APIError is a non-2xx response from the Yelp API.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass

	// Code and Message come from the Yelp error envelope when present.
	Code    string
	Message string

	// RetryAfter is the server's Retry-After hint, zero when absent.
	RetryAfter time.Duration

	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("yelp %s error (status %d): %s: %v", e.ErrorClass, e.StatusCode, msg, e.Err)
	}
	return fmt.Sprintf("yelp %s error (status %d): %s", e.ErrorClass, e.StatusCode, msg)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// newAPIError builds an APIError from a response status and body.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var envelope yelp.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Description
	} else {
		apiErr.Message = http.StatusText(status)
		if snippet := strings.TrimSpace(string(body)); snippet != "" {
			if len(snippet) > 200 {
				snippet = snippet[:200]
			}
			apiErr.Message += ": " + snippet
		}
	}

	apiErr.ErrorClass = classifyStatus(status, apiErr.Code)
	return apiErr
}

// classifyStatus maps an HTTP status and Yelp error code to an ErrorClass.
func classifyStatus(status int, code string) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests && code == CodeAccessLimitReached:
		return ErrorClassQuota
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// classifyError returns the ErrorClass carried by err.
// Errors that are not API errors are transport failures.
func classifyError(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ErrorClassNetwork
}

// retryAfterOf returns the Retry-After hint carried by err.
func retryAfterOf(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// 4xx and an exhausted daily quota do not improve with retries
		return false
	}
}
