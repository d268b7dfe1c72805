// Package errors provides the application error type for gotyper-live.
//
// Wrapping, stack capture and user hints come from github.com/cockroachdb/errors;
// AppError adds a coarse category so callers can render failures in context.
package errors

import (
	"fmt"
	"strings"

	crdb "github.com/cockroachdb/errors"
)

// Re-exported helpers so callers need a single errors import
var (
	New      = crdb.New
	Newf     = crdb.Newf
	Wrap     = crdb.Wrap
	Wrapf    = crdb.Wrapf
	WithHint = crdb.WithHint
	Is       = crdb.Is
	As       = crdb.As
)

// Standard application errors
var (
	ErrEmptyInput      = crdb.New("input is empty or contains only whitespace")
	ErrInvalidJSON     = crdb.New("invalid JSON format")
	ErrMultipleJSON    = crdb.New("multiple JSON values found at the root, only one is allowed")
	ErrFileNotFound    = crdb.New("file not found")
	ErrFileEmpty       = crdb.New("file is empty")
	ErrNoInput         = crdb.New("no input provided: please specify a file with -i or pipe JSON data to stdin")
	ErrInvalidFilePath = crdb.New("invalid file path")
	ErrServiceRejected = crdb.New("conversion service rejected the request")
	ErrNoResponse      = crdb.New("no response from conversion service")
	ErrRequestBuild    = crdb.New("could not build conversion request")
)

// ErrorType categorizes errors
type ErrorType string

const (
	ErrorTypeInput     ErrorType = "input"
	ErrorTypeInvalid   ErrorType = "invalid"
	ErrorTypeService   ErrorType = "service"
	ErrorTypeTransport ErrorType = "transport"
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeOutput    ErrorType = "output"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// AppError is an application-specific error with context
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another *AppError of the same type
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

func newAppError(t ErrorType, message string, err error) *AppError {
	return &AppError{Type: t, Message: message, Err: err}
}

// NewInputError creates a new error related to reading input
func NewInputError(message string, err error) *AppError {
	return newAppError(ErrorTypeInput, message, err)
}

// NewInvalidError creates a new error for text that is not valid JSON
func NewInvalidError(message string, err error) *AppError {
	return newAppError(ErrorTypeInvalid, message, err)
}

// NewServiceError creates a new error for a conversion the service refused
func NewServiceError(message string, err error) *AppError {
	return newAppError(ErrorTypeService, message, err)
}

// NewTransportError creates a new error for a request that could not complete
func NewTransportError(message string, err error) *AppError {
	return newAppError(ErrorTypeTransport, message, err)
}

// NewConfigError creates a new error related to configuration
func NewConfigError(message string, err error) *AppError {
	return newAppError(ErrorTypeConfig, message, err)
}

// NewOutputError creates a new error related to output processing
func NewOutputError(message string, err error) *AppError {
	return newAppError(ErrorTypeOutput, message, err)
}

// UserFriendlyError returns a user-friendly error message
func UserFriendlyError(err error) string {
	msg := friendlyMessage(err)
	if hints := crdb.GetAllHints(err); len(hints) > 0 {
		msg += "\nHint: " + strings.Join(hints, "\nHint: ")
	}
	return msg
}

func friendlyMessage(err error) string {
	var appErr *AppError
	if crdb.As(err, &appErr) {
		switch appErr.Type {
		case ErrorTypeInput:
			return fmt.Sprintf("Input error: %s", appErr.Message)
		case ErrorTypeInvalid:
			return fmt.Sprintf("JSON is not valid: %s", appErr.Message)
		case ErrorTypeService:
			return fmt.Sprintf("Conversion error: %s", appErr.Message)
		case ErrorTypeTransport:
			return fmt.Sprintf("Conversion service unreachable: %s", appErr.Message)
		case ErrorTypeConfig:
			return fmt.Sprintf("Configuration error: %s", appErr.Message)
		case ErrorTypeOutput:
			return fmt.Sprintf("Output error: %s", appErr.Message)
		default:
			return fmt.Sprintf("Error: %s", appErr.Message)
		}
	}

	switch {
	case crdb.Is(err, ErrEmptyInput):
		return "Error: The input is empty. Please provide valid JSON data."
	case crdb.Is(err, ErrInvalidJSON):
		return "Error: The input contains invalid JSON. Please check your JSON syntax."
	case crdb.Is(err, ErrMultipleJSON):
		return "Error: Multiple JSON values found. Please provide a single JSON value."
	case crdb.Is(err, ErrFileNotFound):
		return "Error: The specified file could not be found. Please check the file path."
	case crdb.Is(err, ErrFileEmpty):
		return "Error: The specified file is empty. Please provide a file with valid JSON content."
	case crdb.Is(err, ErrNoInput):
		return "Error: No input provided. Please specify a file with -i or pipe JSON data to stdin."
	case crdb.Is(err, ErrInvalidFilePath):
		return "Error: Invalid file path. Please provide a valid file path."
	case crdb.Is(err, ErrNoResponse), crdb.Is(err, ErrRequestBuild):
		return "Error: Error converting JSON. Please check that the conversion service is reachable."
	}

	return fmt.Sprintf("Error: %v", err)
}
