// Package fault defines the error taxonomy shared by every storage layer.
//
// Errors carry a Code so callers can branch on the category with errors.As
// regardless of how deeply the error was wrapped:
//   - SCHEMA: a group or dataset violates a structural invariant
//   - CONVERSION: a structural record could not be serialized
//   - STORAGE_UNAVAILABLE: the backing file could not be locked in time
//   - DUPLICATE_KEY: the document mirror already holds the key
package fault

import (
	"errors"
	"fmt"
)

// Code categorizes storage errors.
type Code string

const (
	// CodeSchema indicates a missing/invalid scale or a length mismatch.
	CodeSchema Code = "SCHEMA"

	// CodeConversion indicates an input structure could not be serialized.
	CodeConversion Code = "CONVERSION"

	// CodeUnavailable indicates the store could not be opened exclusively.
	CodeUnavailable Code = "STORAGE_UNAVAILABLE"

	// CodeDuplicateKey indicates a mirror document with the same key exists.
	CodeDuplicateKey Code = "DUPLICATE_KEY"
)

// Error is a categorized storage error.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Dataset is the absolute path of the offending dataset, if any.
	Dataset string

	// Record identifies the offending record (row label or position), if any.
	Record string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Dataset != "" {
		msg += fmt.Sprintf(" (dataset=%s)", e.Dataset)
	}
	if e.Record != "" {
		msg += fmt.Sprintf(" (record=%s)", e.Record)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Schema creates a SCHEMA error for the given dataset.
func Schema(dataset, format string, args ...any) *Error {
	return &Error{Code: CodeSchema, Message: fmt.Sprintf(format, args...), Dataset: dataset}
}

// Conversion creates a CONVERSION error for the given record.
func Conversion(record string, err error) *Error {
	return &Error{Code: CodeConversion, Message: "structure cannot be serialized", Record: record, Err: err}
}

// Unavailable creates a STORAGE_UNAVAILABLE error for the given path.
func Unavailable(path string, attempts int, err error) *Error {
	return &Error{
		Code:    CodeUnavailable,
		Message: fmt.Sprintf("%s is unavailable after %d attempt(s)", path, attempts),
		Err:     err,
	}
}

// DuplicateKey creates a DUPLICATE_KEY error for the given record.
func DuplicateKey(record string, err error) *Error {
	return &Error{Code: CodeDuplicateKey, Message: "document key already present", Record: record, Err: err}
}

func is(err error, code Code) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// IsSchema reports whether err is a SCHEMA error.
func IsSchema(err error) bool { return is(err, CodeSchema) }

// IsConversion reports whether err is a CONVERSION error.
func IsConversion(err error) bool { return is(err, CodeConversion) }

// IsUnavailable reports whether err is a STORAGE_UNAVAILABLE error.
func IsUnavailable(err error) bool { return is(err, CodeUnavailable) }

// IsDuplicateKey reports whether err is a DUPLICATE_KEY error.
func IsDuplicateKey(err error) bool { return is(err, CodeDuplicateKey) }
