// Package errors provides standardized error handling for the query engine.
// It includes error classification, standard error variables, and helper
// functions for consistent error wrapping across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input, surfaced to the client
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Query-graph validation errors. ErrInvalidQueryGraph is the only error
	// class surfaced to the client; it maps to HTTP 400 at the gateway.
	ErrInvalidQueryGraph = errors.New("invalid query graph")
	ErrCyclicQueryGraph  = errors.New("query graph contains a cycle")
	ErrNoFixedInput      = errors.New("query graph has no node with curies")

	// Execution errors that short-circuit to an empty answer
	ErrNoOperations = errors.New("no metakg operations match edge")
	ErrNoRecords    = errors.New("edge produced no records")
	ErrNoSurvivors  = errors.New("no records survived filtering")

	// Cache errors; all degrade to a cache miss
	ErrCacheDisabled    = errors.New("result caching disabled")
	ErrCacheUnavailable = errors.New("cache backend unavailable")
	ErrCacheCorrupt     = errors.New("corrupt cache entry")
	ErrLockFailed       = errors.New("cache lock acquisition failed")

	// Boundary errors
	ErrResolverUnavailable = errors.New("identifier resolver unavailable")
	ErrAPICallFailed       = errors.New("downstream api call failed")
	ErrMalformedRecord     = errors.New("malformed record")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsInvalid checks if an error is due to invalid client input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrInvalidQueryGraph) ||
		errors.Is(err, ErrCyclicQueryGraph) ||
		errors.Is(err, ErrNoFixedInput)
}

// IsTransient checks if an error is transient and may be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	return errors.Is(err, ErrCacheUnavailable) ||
		errors.Is(err, ErrLockFailed) ||
		errors.Is(err, ErrResolverUnavailable) ||
		errors.Is(err, ErrAPICallFailed)
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig)
}

// IsEmptyAnswer reports whether an error is one of the short-circuit
// signals that unwind the execution loop with an empty, non-error response.
func IsEmptyAnswer(err error) bool {
	return errors.Is(err, ErrNoOperations) ||
		errors.Is(err, ErrNoRecords) ||
		errors.Is(err, ErrNoSurvivors)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}
	if IsFatal(err) {
		return ErrorFatal
	}
	return ErrorTransient
}

// newClassified creates a new classified error.
// Internal helper - use WrapTransient, WrapFatal, or WrapInvalid instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// Is reports whether any error in err's chain matches target.
// Re-exported so callers do not need both this package and the standard
// library errors package.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }
