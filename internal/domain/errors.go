package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInFlight indicates the flow already has a request outstanding
	ErrInFlight = errors.New("request already in flight")
	// ErrUnsupportedFile indicates a selected file of a type the UI does not accept
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrFileTooLarge indicates a selected file above the configured size limit
	ErrFileTooLarge = errors.New("file too large")
)

// ValidationError is a local precondition failure. It never reaches the network.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// TransportError means the request could not be completed: network failure,
// timeout, or a response body that could not be decoded.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BackendError is a completed request answered with a non-2xx status.
// Message holds the server supplied "error" field, if any.
type BackendError struct {
	Op      string
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.Status, e.Message)
}

// NotificationMessage returns the text shown to the user for err.
// Validation errors and server supplied messages are shown verbatim; everything
// else falls back to the generic message.
func NotificationMessage(err error, fallback string) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	var berr *BackendError
	if errors.As(err, &berr) && berr.Message != "" {
		return berr.Message
	}
	return fallback
}
