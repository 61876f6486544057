package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches API errors with status 404.
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden matches API errors with status 403 or reason DEACTIVATED.
	ErrForbidden = errors.New("access denied")
)

// ReasonDeactivated is the error-body reason the API uses for a switched-off quiz.
const ReasonDeactivated = "DEACTIVATED"

// APIError is a response the quiz API answered with a non-success status, or a
// success status whose body could not be read.
type APIError struct {
	Status  int
	Reason  string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("quiz api: status %d", e.Status)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

// Is lets callers classify with errors.Is(err, client.ErrNotFound).
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == 404
	case ErrForbidden:
		return e.Status == 403 || e.Reason == ReasonDeactivated
	}
	return false
}

// IsSuccessStatus reports whether err is an APIError carrying a 2xx status,
// i.e. the server accepted the request but the body was unusable.
func IsSuccessStatus(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 200 && apiErr.Status < 300
	}
	return false
}

// ServerMessage returns the message from the API error body, if any.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
