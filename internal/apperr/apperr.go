package apperr

import (
	"errors"
	"fmt"
)

// AppError is a structured error carrying a taxonomy code
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	CodeInputValidation = "INPUT_VALIDATION"
	CodeConsistency     = "CONSISTENCY"
	CodeRange           = "RANGE"
	CodeCompute         = "COMPUTE"
	CodeStructural      = "STRUCTURAL"
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeNotFound        = "NOT_FOUND"
	CodeInternal        = "INTERNAL_ERROR"
)

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates a new AppError with a formatted message
func Newf(code, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps err with a message, keeping the code of an inner AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{Code: appErr.Code, Message: message, Cause: err}
	}
	return &AppError{Code: CodeInternal, Message: message, Cause: err}
}

// Wrapf wraps err with a formatted message
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode replaces the code on err
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{Code: code, Message: appErr.Message, Cause: appErr.Cause}
	}
	return &AppError{Code: code, Message: err.Error(), Cause: err}
}

// GetCode returns the outermost AppError code, or "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Is reports whether err carries the given code
func Is(err error, code string) bool {
	return err != nil && GetCode(err) == code
}

// Fatal reports whether err terminates a query rather than degrading one target
func Fatal(err error) bool {
	switch GetCode(err) {
	case CodeRange, CodeCompute:
		return false
	}
	return err != nil
}

func InputValidation(format string, args ...any) *AppError {
	return Newf(CodeInputValidation, format, args...)
}

func Consistency(format string, args ...any) *AppError {
	return Newf(CodeConsistency, format, args...)
}

func Range(format string, args ...any) *AppError {
	return Newf(CodeRange, format, args...)
}

// Compute reports a failed or timed-out per-target computation
func Compute(cause error, format string, args ...any) *AppError {
	return &AppError{Code: CodeCompute, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func Structural(format string, args ...any) *AppError {
	return Newf(CodeStructural, format, args...)
}

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}
