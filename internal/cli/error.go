package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/ppiankov/logvars/internal/logparse"
)

// Exit codes for scripted callers.
const (
	ExitOK         = 0
	ExitInternal   = 1
	ExitUsage      = 2
	ExitNotFound   = 3
	ExitPermission = 4
	ExitNetwork    = 5
	ExitParse      = 6
	ExitCanceled   = 130
)

// CLIError is a structured error with a category for machine consumption.
type CLIError struct {
	Code    int    `json:"exit_code"`
	Type    string `json:"error"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Recover bool   `json:"recoverable"`
	cause   error
}

func (e *CLIError) Error() string {
	return e.Message
}

// Unwrap returns the classified cause, if any.
func (e *CLIError) Unwrap() error { return e.cause }

// NewUsageError creates an error for invalid arguments.
func NewUsageError(msg string) *CLIError {
	return &CLIError{Code: ExitUsage, Type: "invalid_args", Message: msg}
}

// NewNotFoundError creates an error for missing inputs.
func NewNotFoundError(msg string) *CLIError {
	return &CLIError{Code: ExitNotFound, Type: "not_found", Message: msg}
}

// NewPermissionError creates an error for access denied.
func NewPermissionError(msg string) *CLIError {
	return &CLIError{Code: ExitPermission, Type: "permission", Message: msg}
}

// NewNetworkError creates a recoverable network error.
func NewNetworkError(msg string) *CLIError {
	return &CLIError{Code: ExitNetwork, Type: "network", Message: msg, Recover: true}
}

// NewInternalError creates an error for unexpected failures.
func NewInternalError(msg string) *CLIError {
	return &CLIError{Code: ExitInternal, Type: "internal", Message: msg}
}

// Classify maps a command error onto a CLIError. Errors that are already
// classified pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var ce *CLIError
	if errors.As(err, &ce) {
		return err
	}
	var pe *logparse.ParseError
	switch {
	case errors.As(err, &pe):
		return &CLIError{Code: ExitParse, Type: "parse_failed", Message: err.Error(), Line: pe.Line, cause: err}
	case errors.Is(err, logparse.ErrCanceled), errors.Is(err, context.Canceled):
		return &CLIError{Code: ExitCanceled, Type: "canceled", Message: err.Error(), cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &CLIError{Code: ExitNetwork, Type: "timeout", Message: err.Error(), Recover: true, cause: err}
	case errors.Is(err, fs.ErrNotExist):
		return &CLIError{Code: ExitNotFound, Type: "not_found", Message: err.Error(), cause: err}
	case errors.Is(err, fs.ErrPermission):
		return &CLIError{Code: ExitPermission, Type: "permission", Message: err.Error(), cause: err}
	}
	return err
}

// ExitCode extracts the exit code from an error.
// Returns ExitInternal (1) for unclassified errors, ExitOK (0) for nil.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ce *CLIError
	if errors.As(Classify(err), &ce) {
		return ce.Code
	}
	return ExitInternal
}

// FormatError writes the error to w. In JSON mode, it writes structured JSON.
// In text mode, it writes "error: <message>".
func FormatError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}

	if jsonMode {
		var ce *CLIError
		if !errors.As(Classify(err), &ce) {
			ce = &CLIError{
				Code:    ExitInternal,
				Type:    "internal",
				Message: err.Error(),
			}
		}
		data, _ := json.Marshal(ce)
		_, _ = fmt.Fprintln(w, string(data))
		return
	}

	_, _ = fmt.Fprintf(w, "error: %v\n", err)
}
