package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ValidationError reports a malformed or incomplete request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError reports a missing local asset, ledger file or ledger entry.
type NotFoundError struct {
	Resource string
	Path     string
}

func (e *NotFoundError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Path)
}

// ExternalServiceError reports a non-success response from an upstream API.
type ExternalServiceError struct {
	Service    string
	StatusCode int
	Body       string
	Err        error
}

func (e *ExternalServiceError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s request failed", e.Service)
	}
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ExternalToolError reports a failed media tool invocation together with
// everything an operator needs to reproduce it.
type ExternalToolError struct {
	Command  []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ExternalToolError) Error() string {
	name := "external tool"
	if len(e.Command) > 0 {
		name = e.Command[0]
	}
	return fmt.Sprintf("%s exited with code %d: %s", name, e.ExitCode, lastLine(e.Stderr))
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// CommandLine renders the failed command for logs.
func (e *ExternalToolError) CommandLine() string {
	return strings.Join(e.Command, " ")
}

// RateLimitedError reports that the caller used up the daily generation quota.
type RateLimitedError struct {
	Limit int
}

func (e *RateLimitedError) Error() string {
	return "Daily video generation limit reached. You can still recreate existing videos."
}

// Validation builds a ValidationError from a format string.
func Validation(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a NotFoundError.
func NotFound(resource, path string) error {
	return &NotFoundError{Resource: resource, Path: path}
}

// StatusCode maps an error chain to the HTTP status used at the boundary.
func StatusCode(err error) int {
	var (
		validation  *ValidationError
		notFound    *NotFoundError
		rateLimited *RateLimitedError
		service     *ExternalServiceError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &rateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &service):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
