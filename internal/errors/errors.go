package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the category of error.
type ErrorType int

const (
	// InvalidRequest - rejected before any backend call (empty commit set,
	// unresolvable template, malformed input). Never retried.
	ErrorTypeInvalidRequest ErrorType = iota
	// SourceUnavailable - commit or style lookup failed. Surfaced to the
	// caller; the engine does not retry.
	ErrorTypeSourceUnavailable
	// GenerationUnavailable - the generative backend exhausted its retries.
	ErrorTypeGenerationUnavailable
	// GenerationRejected - the backend judged the request malformed.
	// Not retried; logged as a composer defect.
	ErrorTypeGenerationRejected
	// Config errors - missing or invalid configuration.
	ErrorTypeConfig
	// Storage errors - cache or history persistence failures.
	ErrorTypeStorage
	// Internal errors - unexpected internal state.
	ErrorTypeInternal
)

// Severity represents how critical an error is.
type Severity int

const (
	// SeverityLow - can continue with degraded functionality.
	SeverityLow Severity = iota
	// SeverityMedium - should be addressed but not fatal.
	SeverityMedium
	// SeverityHigh - significant issue, may impact functionality.
	SeverityHigh
	// SeverityCritical - must be addressed, stops execution.
	SeverityCritical
)

// Error represents a structured error with context.
type Error struct {
	Type     ErrorType
	Severity Severity
	Message  string
	Cause    error
	Context  map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is checks if this error matches the target error type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// DetailedString returns a detailed error message with context.
func (e *Error) DetailedString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n",
		severityString(e.Severity),
		typeString(e.Type),
		e.Message))

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}

	if len(e.Context) > 0 {
		sb.WriteString("Context:\n")
		for k, v := range e.Context {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
		}
	}

	return sb.String()
}

func typeString(t ErrorType) string {
	switch t {
	case ErrorTypeInvalidRequest:
		return "INVALID_REQUEST"
	case ErrorTypeSourceUnavailable:
		return "SOURCE_UNAVAILABLE"
	case ErrorTypeGenerationUnavailable:
		return "GENERATION_UNAVAILABLE"
	case ErrorTypeGenerationRejected:
		return "GENERATION_REJECTED"
	case ErrorTypeConfig:
		return "CONFIG"
	case ErrorTypeStorage:
		return "STORAGE"
	case ErrorTypeInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

func severityString(s Severity) string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// New creates a new error with the given type, severity, and message.
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{
		Type:     errType,
		Severity: severity,
		Message:  message,
		Context:  make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Type:     errType,
		Severity: severity,
		Message:  message,
		Cause:    err,
		Context:  make(map[string]interface{}),
	}
}

// Convenience constructors for the engine's error taxonomy.

// InvalidRequest creates an invalid-request error.
func InvalidRequest(message string) *Error {
	return New(ErrorTypeInvalidRequest, SeverityHigh, message)
}

// InvalidRequestf creates an invalid-request error with formatting.
func InvalidRequestf(format string, args ...interface{}) *Error {
	return New(ErrorTypeInvalidRequest, SeverityHigh, fmt.Sprintf(format, args...))
}

// SourceUnavailable wraps a commit/style source failure.
func SourceUnavailable(err error, message string) *Error {
	return Wrap(err, ErrorTypeSourceUnavailable, SeverityHigh, message)
}

// GenerationUnavailable wraps a backend failure after retry exhaustion.
func GenerationUnavailable(err error, message string) *Error {
	return Wrap(err, ErrorTypeGenerationUnavailable, SeverityHigh, message)
}

// GenerationRejected wraps a non-retryable backend rejection.
func GenerationRejected(err error, message string) *Error {
	return Wrap(err, ErrorTypeGenerationRejected, SeverityHigh, message)
}

// ConfigError creates a configuration error.
func ConfigError(message string) *Error {
	return New(ErrorTypeConfig, SeverityCritical, message)
}

// ConfigErrorf creates a configuration error with formatting.
func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

// StorageError wraps a persistence error.
func StorageError(err error, message string) *Error {
	return Wrap(err, ErrorTypeStorage, SeverityHigh, message)
}

// InternalError creates an internal error.
func InternalError(message string) *Error {
	return New(ErrorTypeInternal, SeverityCritical, message)
}

// InternalErrorf creates an internal error with formatting.
func InternalErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeInternal, SeverityCritical, fmt.Sprintf(format, args...))
}

// isType reports whether err (or anything it wraps) carries the given type.
func isType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsInvalidRequest reports whether err is an InvalidRequest error.
func IsInvalidRequest(err error) bool {
	return isType(err, ErrorTypeInvalidRequest)
}

// IsSourceUnavailable reports whether err is a SourceUnavailable error.
func IsSourceUnavailable(err error) bool {
	return isType(err, ErrorTypeSourceUnavailable)
}

// IsGenerationUnavailable reports whether err is a GenerationUnavailable error.
func IsGenerationUnavailable(err error) bool {
	return isType(err, ErrorTypeGenerationUnavailable)
}

// IsGenerationRejected reports whether err is a GenerationRejected error.
func IsGenerationRejected(err error) bool {
	return isType(err, ErrorTypeGenerationRejected)
}

// GetType returns the type of an error.
func GetType(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// GetSeverity returns the severity of an error.
func GetSeverity(err error) Severity {
	var e *Error
	if errors.As(err, &e) {
		return e.Severity
	}
	return SeverityMedium
}
