// Package bridgeerrors provides structured error handling for orcbridge with
// error categorization, key-value context, and stack capture at creation
// points.
//
// # Error Types
//
// Errors are categorized by type so callers can distinguish schema
// translation failures, caller contract violations, and data-level problems
// without string matching:
//
//	if bridgeerrors.IsType(err, bridgeerrors.ErrorTypeTranslation) {
//	    // unsupported source type; the reader cannot be opened
//	}
//
// Absence of a handle in a registry is deliberately not modeled as an error
// here; registries return a zero value and a boolean instead.
//
// # Thread Safety
//
// Error instances are not safe for concurrent modification. Finish WithDetail
// chains before sharing an error across goroutines.
package bridgeerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeInternal represents internal consistency failures, such as a
	// type descriptor paired with a batch of a different category.
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeTranslation represents source types with no Arrow mapping.
	ErrorTypeTranslation ErrorType = "translation"
	// ErrorTypeContract represents caller precondition violations, such as a
	// materialization window outside the batch bounds.
	ErrorTypeContract ErrorType = "contract"
	// ErrorTypeData represents value-level problems in decoded data, such as
	// an integer that does not fit the target physical width.
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile represents source file access or corruption errors.
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeConfig represents configuration errors.
	ErrorTypeConfig ErrorType = "config"
)

// Error is a categorized error with key-value details and the call stack
// captured where it was created.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame is a single frame of the captured call stack.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. It returns the receiver
// so details can be chained:
//
//	return bridgeerrors.New(bridgeerrors.ErrorTypeContract, "window out of range").
//	    WithDetail("offset", offset).
//	    WithDetail("length", length)
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message, capturing the
// call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with a type and message, preserving the
// original error as the cause. Returns nil if err is nil. If err is already
// a structured Error, its stack is carried over instead of recaptured.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existing.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType reports whether err (or any error in its chain) is a structured
// Error of the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
