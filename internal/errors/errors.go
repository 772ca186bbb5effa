package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess          Code = 0
	CodeInternal         Code = 1
	CodeValidation       Code = 2
	CodeConfiguration    Code = 10
	CodeUnknownProvider  Code = 11
	CodeUnsupportedRoute Code = 12
	CodeUpstream         Code = 13
	CodeCancelled        Code = 14
	CodeBlocked          Code = 16
	CodeRateLimited      Code = 17
)

// String returns the envelope error type for c.
func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "ok"
	case CodeValidation:
		return "validation_error"
	case CodeConfiguration:
		return "configuration_error"
	case CodeUnknownProvider:
		return "unknown_provider"
	case CodeUnsupportedRoute:
		return "unsupported_route"
	case CodeUpstream:
		return "upstream_error"
	case CodeCancelled:
		return "cancelled"
	case CodeBlocked:
		return "command_blocked"
	case CodeRateLimited:
		return "rate_limited"
	default:
		return "internal_error"
	}
}

// TypeOf maps err to its envelope error type.
func TypeOf(err error) string {
	if err == nil {
		return CodeSuccess.String()
	}
	if cErr, ok := As(err); ok {
		return cErr.Code.String()
	}
	return CodeInternal.String()
}

// Error is a typed error that carries a stable error code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Is reports whether any typed error in the chain carries code.
func Is(err error, code Code) bool {
	for err != nil {
		cErr, ok := As(err)
		if !ok {
			return false
		}
		if cErr.Code == code {
			return true
		}
		err = cErr.Cause
	}
	return false
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if cliErr, ok := As(err); ok {
		return int(cliErr.Code)
	}
	return int(CodeInternal)
}

// UpstreamError holds the raw provider response behind a CodeUpstream failure.
// Status is zero when the request never produced a response.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return "no response from provider"
	}
	if e.Body == "" {
		return fmt.Sprintf("provider status %d", e.Status)
	}
	return fmt.Sprintf("provider status %d: %s", e.Status, truncate(e.Body, 512))
}

// Upstream returns the raw provider response carried anywhere in the chain of err.
func Upstream(err error) (*UpstreamError, bool) {
	var target *UpstreamError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func truncate(v string, n int) string {
	if len(v) <= n {
		return v
	}
	return v[:n] + "..."
}
