package services

import (
	"errors"
	"net/http"
)

// ErrorKind classifies service failures for HTTP mapping
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuthenticity
	KindConflict
	KindNotFound
	KindConfiguration
	KindUpstream
	KindAccountRequired
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthenticity:
		return "authenticity"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindConfiguration:
		return "configuration"
	case KindUpstream:
		return "upstream"
	case KindAccountRequired:
		return "account_required"
	default:
		return "internal"
	}
}

// Error is returned by the order and enrollment services. Message is safe to
// show to API callers; Err carries the underlying cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error

	// status overrides the kind's default HTTP status
	status int
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status for this error
func (e *Error) StatusCode() int {
	if e.status != 0 {
		return e.status
	}
	switch e.Kind {
	case KindValidation, KindAuthenticity, KindNotFound:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindAccountRequired:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func ValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func AuthenticityError(message string) *Error {
	return &Error{Kind: KindAuthenticity, Message: message}
}

func ConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// NotFoundError builds a not-found error answered with the given status.
// Order creation reports missing items as 404, enrollment as 400.
func NotFoundError(message string, status int) *Error {
	return &Error{Kind: KindNotFound, Message: message, status: status}
}

func ConfigurationError(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

func UpstreamError(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

func AccountRequiredError() *Error {
	return &Error{Kind: KindAccountRequired, Message: "account required"}
}

// KindOf returns the kind of a service error, KindInternal for anything else
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}

// StatusCode maps any error to an HTTP status
func StatusCode(err error) int {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode()
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message an API caller should see. Upstream
// failures keep their cause so gateway errors reach the client.
func PublicMessage(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.Kind != KindUpstream {
		return svcErr.Message
	}
	return err.Error()
}
