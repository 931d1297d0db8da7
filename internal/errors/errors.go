package errors

import "errors"

// Code identifies a structured error type used across the application.
type Code string

const (
	// Generic codes
	CodeUnknown Code = "unknown"

	// Release feed / network errors
	CodeConnectivity Code = "connectivity"
	CodeAssetMissing Code = "asset_missing"
	CodeDownload     Code = "download_failed"
	CodeParse        Code = "parse_failed"

	// Local filesystem errors
	CodeIO Code = "io_failed"

	// Orchestration errors
	CodeFatal              Code = "fatal"
	CodeCycleInProgress    Code = "cycle_in_progress"
	CodeConfigurationError Code = "configuration_error"
)

// Error represents a structured error with a machine-readable code plus message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

// Unwrap returns the wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// New wraps an error with a code/message.
func New(code Code, msg string, err error) Error {
	return Error{Code: code, Message: msg, Err: err}
}

// CodeOf walks the error chain and returns the first structured code found.
func CodeOf(err error) Code {
	var structured Error
	if errors.As(err, &structured) {
		return structured.Code
	}
	return CodeUnknown
}

// IsCode reports whether the outermost structured code in the chain matches.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// HasCode reports whether any structured error in the chain carries code.
// Unlike IsCode it looks past a fatal wrapper to the classified cause.
func HasCode(err error, code Code) bool {
	for err != nil {
		if structured, ok := err.(Error); ok && structured.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
