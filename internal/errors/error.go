package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryRegistry   Category = "registry"
	CategoryManifest   Category = "manifest"
	CategoryValidation Category = "validation"
	CategoryNetwork    Category = "network"
	CategoryDownload   Category = "download"
	CategoryFilesystem Category = "filesystem"
	CategoryCLI        Category = "cli"
)

// RefdexError is a structured error with a code, suggestions, and documentation.
type RefdexError struct {
	// Code is a unique error identifier (e.g., "E001").
	Code string

	// Category is the error type (registry, manifest, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *RefdexError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *RefdexError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a RefdexError carrying the same code.
// Empty codes never match.
func (e *RefdexError) Is(target error) bool {
	t, ok := target.(*RefdexError)
	return ok && t.Code != "" && t.Code == e.Code
}

// WithDetail adds a detailed explanation to the error.
func (e *RefdexError) WithDetail(d string) *RefdexError {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted detailed explanation to the error.
func (e *RefdexError) WithDetailf(format string, args ...any) *RefdexError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *RefdexError) WithSuggestion(s string) *RefdexError {
	e.Suggestion = s
	return e
}

// Wrap wraps another error.
func (e *RefdexError) Wrap(err error) *RefdexError {
	e.Wrapped = err
	return e
}

// New creates a RefdexError from a registered error code.
func New(code string) *RefdexError {
	template, ok := registry[code]
	if !ok {
		return &RefdexError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &RefdexError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new RefdexError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *RefdexError {
	return &RefdexError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a RefdexError.
func FromError(err error, code string) *RefdexError {
	if err == nil {
		return nil
	}
	if re, ok := err.(*RefdexError); ok {
		return re
	}
	return New(code).Wrap(err)
}

// HasCode reports whether err or any error it wraps carries the given code.
// Matching goes through errors.Is, so codes are found inside aggregate
// errors as well as plain wrapped chains.
func HasCode(err error, code string) bool {
	return stderrors.Is(err, &RefdexError{Code: code})
}

// CodeOf returns the code of err if it is a RefdexError, or "" otherwise.
func CodeOf(err error) string {
	var re *RefdexError
	if stderrors.As(err, &re) {
		return re.Code
	}
	return ""
}
