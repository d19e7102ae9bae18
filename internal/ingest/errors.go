package ingest

// errors.go defines the ingestion error taxonomy.
//
// Three kinds cover every failure the pipeline can produce:
//
//   - ValidationError: the file was rejected before any parse attempt
//     (too large, disallowed extension).
//   - ParseError: the file content could not be turned into rows, or
//     produced none. Empty and malformed inputs carry distinct messages.
//   - UnexpectedError: anything else, wrapped with a generic message so
//     it is never silently swallowed.
//
// All three propagate to the caller as a failed outcome. The pipeline
// never retries internally.

import (
	"errors"
	"fmt"
)

// EmptyDataMessage is the user-facing reason for inputs that parse to
// zero data rows.
const EmptyDataMessage = "file is empty or has no valid data"

// ValidationError rejects a file before parsing starts.
type ValidationError struct {
	Field   string // What was checked ("size", "extension", "filename")
	Value   string // The offending value
	Message string // Human-readable error message
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ParseError reports unreadable or empty file content.
type ParseError struct {
	Message string
	Empty   bool // True when the file parsed cleanly but had no data rows
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// errEmptyData builds the ParseError for inputs with no usable rows.
func errEmptyData() *ParseError {
	return &ParseError{Message: EmptyDataMessage, Empty: true}
}

// UnexpectedError wraps failures outside the validation/parse taxonomy.
type UnexpectedError struct {
	Op  string
	Err error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error during %s: %v", e.Op, e.Err)
}

func (e *UnexpectedError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsParse reports whether err is (or wraps) a ParseError.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsEmptyData reports whether err is a ParseError for an empty input.
func IsEmptyData(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Empty
}
