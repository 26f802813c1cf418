package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Legible error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"   // 400
	ErrPathNotAllowed  ErrorCode = "PATH_NOT_ALLOWED"  // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"         // 404
	ErrFileNotFound    ErrorCode = "FILE_NOT_FOUND"    // 404
	ErrIDAlreadyExists ErrorCode = "ID_ALREADY_EXISTS" // 409
	ErrFileTooLarge    ErrorCode = "FILE_TOO_LARGE"    // 413
	ErrCancelled       ErrorCode = "CANCELLED"         // 499
	ErrInternal        ErrorCode = "INTERNAL"          // 500
)

// LegibleError represents a structured error with code, status, and details.
type LegibleError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *LegibleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *LegibleError {
	return &LegibleError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewPathNotAllowed creates a 400 error for export/import paths outside the allowlist.
func NewPathNotAllowed(path string, allowed []string) *LegibleError {
	return &LegibleError{
		Code:    ErrPathNotAllowed,
		Status:  400,
		Message: fmt.Sprintf("file must be directly in an allowed directory (no subdirectories): %s", path),
		Details: map[string]any{"path": path, "allowed": allowed},
	}
}

// NewSourceNotAllowed creates a 400 error for a document path outside the
// directories a tool caller may read.
func NewSourceNotAllowed(path string, allowed []string) *LegibleError {
	return &LegibleError{
		Code:    ErrPathNotAllowed,
		Status:  400,
		Message: fmt.Sprintf("document must be inside the working directory or an allowed path: %s", path),
		Details: map[string]any{"path": path, "allowed": allowed},
	}
}

// NewNotFound creates a 404 error for when a report cannot be found.
func NewNotFound(identifier string) *LegibleError {
	return &LegibleError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("report not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing input file.
func NewFileNotFound(path string) *LegibleError {
	return &LegibleError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("File not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewIDAlreadyExists creates a 409 error when an imported report ID is taken.
func NewIDAlreadyExists(id string) *LegibleError {
	return &LegibleError{
		Code:    ErrIDAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("report with id %q already exists", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileTooLarge creates a 413 error when an input file exceeds max_file_bytes.
func NewFileTooLarge(path string, max, actual int64) *LegibleError {
	return &LegibleError{
		Code:    ErrFileTooLarge,
		Status:  413,
		Message: fmt.Sprintf("file exceeds maximum size: %d bytes (max %d): %s", actual, max, path),
		Details: map[string]any{"path": path, "max_bytes": max, "actual_bytes": actual},
	}
}

// NewCancelled creates a 499 error when an operation is cancelled mid-way.
func NewCancelled(operation string) *LegibleError {
	return &LegibleError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the cause is kept in Details for logging only.
func NewInternal(err error) *LegibleError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &LegibleError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error (or anything it wraps) is a LegibleError with the given code.
func Is(err error, code ErrorCode) bool {
	var lErr *LegibleError
	if stderrors.As(err, &lErr) {
		return lErr.Code == code
	}
	return false
}
