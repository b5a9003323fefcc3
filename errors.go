package topicscope

import (
	"errors"
	"fmt"
)

// Error represents a topicscope error with categorization.
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error (if any)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code and message, so sentinel
// values such as ErrNotConnected work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// Error codes.
const (
	// ErrCodeNoData indicates no data was found.
	ErrCodeNoData = "NO_DATA"

	// ErrCodeValidation indicates validation failed (bad topic filter, bad import).
	ErrCodeValidation = "VALIDATION_ERROR"

	// ErrCodeConfiguration indicates invalid configuration (missing URL,
	// missing publish topic, missing transport).
	ErrCodeConfiguration = "CONFIGURATION_ERROR"

	// ErrCodeDatabase indicates a persistence operation failed.
	ErrCodeDatabase = "DATABASE_ERROR"

	// ErrCodeTransport indicates the transport rejected an operation.
	ErrCodeTransport = "TRANSPORT_ERROR"

	// ErrCodeNotConnected indicates an operation needs a live connection.
	ErrCodeNotConnected = "NOT_CONNECTED"
)

// Common errors.
var (
	// ErrNoData is returned when a query returns no results.
	// Repositories return it for an empty store; Load treats it as "nothing saved yet".
	ErrNoData = &Error{
		Code:    ErrCodeNoData,
		Message: "no data found",
	}

	// ErrNotConnected is returned by Send and the bulk subscription calls
	// while no connection is established.
	ErrNotConnected = &Error{
		Code:    ErrCodeNotConnected,
		Message: "not connected",
	}

	// ErrNoPublishTopic is returned by Send in MQTT mode when the connection
	// config has no publish topic.
	ErrNoPublishTopic = &Error{
		Code:    ErrCodeConfiguration,
		Message: "publish topic is required",
	}

	// ErrEmptyURL is returned by Connect when neither a URL nor a host is configured.
	ErrEmptyURL = &Error{
		Code:    ErrCodeConfiguration,
		Message: "url is required",
	}
)

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error wrapping an underlying error.
func NewErrorWithCause(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// IsNoData checks if an error is ErrNoData.
func IsNoData(err error) bool {
	return hasCode(err, ErrCodeNoData)
}

// IsNotConnected checks if an error reports a missing connection.
func IsNotConnected(err error) bool {
	return hasCode(err, ErrCodeNotConnected)
}

// IsValidation checks if an error is a validation failure.
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

func hasCode(err error, code string) bool {
	var scopeErr *Error
	if errors.As(err, &scopeErr) {
		return scopeErr.Code == code
	}
	return false
}
