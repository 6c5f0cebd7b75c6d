// Package apierr defines the service's error-code taxonomy and maps it to
// HTTP status codes at the API edge.
package apierr

import (
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
)

// Code is one of the fixed, SNAKE_CASE error codes of the service's error
// taxonomy.
type Code string

const (
	Unauthorized        Code = "UNAUTHORIZED"
	ValidationError     Code = "VALIDATION_ERROR"
	InvalidLinkedinURL  Code = "INVALID_LINKEDIN_URL"
	ProfileNotFound     Code = "PROFILE_NOT_FOUND"
	CompanyNotFound     Code = "COMPANY_NOT_FOUND"
	TemplateNotFound    Code = "TEMPLATE_NOT_FOUND"
	JobNotFound         Code = "JOB_NOT_FOUND"
	IncompleteData      Code = "INCOMPLETE_DATA"
	ScraperUnavailable  Code = "SCRAPER_UNAVAILABLE"
	LLMUnavailable      Code = "LLM_UNAVAILABLE"
	LLMBadResponse      Code = "LLM_BAD_RESPONSE"
	ProfileCreateFailed Code = "PROFILE_CREATION_FAILED"
	RateLimitExceeded   Code = "RATE_LIMIT_EXCEEDED"
	InternalError       Code = "INTERNAL_ERROR"
)

// httpStatus maps each code to its edge HTTP status.
var httpStatus = map[Code]int{
	Unauthorized:        http.StatusUnauthorized,
	ValidationError:     http.StatusUnprocessableEntity,
	InvalidLinkedinURL:  http.StatusUnprocessableEntity,
	ProfileNotFound:     http.StatusNotFound,
	CompanyNotFound:     http.StatusNotFound,
	TemplateNotFound:    http.StatusNotFound,
	JobNotFound:         http.StatusNotFound,
	IncompleteData:      http.StatusUnprocessableEntity,
	ScraperUnavailable:  http.StatusBadGateway,
	LLMUnavailable:      http.StatusBadGateway,
	LLMBadResponse:      http.StatusUnprocessableEntity,
	ProfileCreateFailed: http.StatusInternalServerError,
	RateLimitExceeded:   http.StatusTooManyRequests,
	InternalError:       http.StatusInternalServerError,
}

// Error is a taxonomy-tagged error carrying an eris-wrapped cause for
// logging, a human-readable message safe to return to clients, and an
// optional details map for per-field or contextual information.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is/As and eris inspection.
func (e *Error) Unwrap() error {
	return e.cause
}

// HTTPStatus returns the HTTP status code this error maps to.
func (e *Error) HTTPStatus() int {
	if status, ok := httpStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// New constructs an *Error wrapping cause with eris for stack-trace capture.
// cause may be nil, in which case message alone is recorded.
func New(code Code, message string, cause error, details map[string]any) *Error {
	var wrapped error
	if cause != nil {
		wrapped = eris.Wrap(cause, message)
	} else {
		wrapped = eris.New(message)
	}
	return &Error{Code: code, Message: message, Details: details, cause: wrapped}
}

// From unwraps err to find an *Error in its chain, falling back to
// INTERNAL_ERROR per §7's propagation policy. A found *Error is returned
// as-is, so any wrapping added around it is not kept; in the INTERNAL_ERROR
// fallback the original err is preserved as the returned Error's cause for
// logging.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{
		Code:    InternalError,
		Message: "an unexpected error occurred",
		cause:   eris.Wrap(err, "unclassified error"),
	}
}

// Trace renders the full eris stack trace of the underlying cause, for
// server-side logging only — it must never be returned to a client.
func (e *Error) Trace() string {
	if e.cause == nil {
		return e.Message
	}
	return eris.ToString(e.cause, true)
}
