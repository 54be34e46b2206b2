package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the different classes of failure in a crawl run
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeExtraction    ErrorType = "extraction"
	ErrorTypeDateParse     ErrorType = "date_parse"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeBrowser       ErrorType = "browser"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// Error is a typed error carrying optional page context for diagnosis
type Error struct {
	Type    ErrorType
	Message string
	// Context holds the raw element or page state that triggered the error
	Context string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(errorType ErrorType, message string, err error) *Error {
	return &Error{Type: errorType, Message: message, Err: err}
}

// Configuration reports a missing or placeholder credential or a bad setting
func Configuration(message string) *Error {
	return New(ErrorTypeConfiguration, message, nil)
}

// Timeout reports that the front item never appeared
func Timeout(message string, err error) *Error {
	return New(ErrorTypeTimeout, message, err)
}

// Extraction reports a structurally unreadable item; context is the raw element
func Extraction(message, context string, err error) *Error {
	e := New(ErrorTypeExtraction, message, err)
	e.Context = context
	return e
}

// DateParse reports a date that matched neither accepted layout
func DateParse(raw string, err error) *Error {
	return New(ErrorTypeDateParse, fmt.Sprintf("cannot parse date %q", raw), err)
}

// Storage reports a failure writing or reading the crawl log or snapshot
func Storage(message string, err error) *Error {
	return New(ErrorTypeStorage, message, err)
}

// Browser reports a failure talking to the browser session
func Browser(message string, err error) *Error {
	return New(ErrorTypeBrowser, message, err)
}

// TypeOf returns the ErrorType of the first typed error in the chain
func TypeOf(err error) ErrorType {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type anywhere in its chain
func IsType(err error, errorType ErrorType) bool {
	return err != nil && TypeOf(err) == errorType
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTimeout, ErrorTypeExtraction, ErrorTypeBrowser:
		return true
	case ErrorTypeConfiguration, ErrorTypeDateParse, ErrorTypeStorage:
		return false
	default:
		return false
	}
}
