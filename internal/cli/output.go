package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/linkctl/internal/ir"
	"github.com/roach88/linkctl/internal/orchestrator"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Every link confirmed, or the command completed
	ExitFailure      = 1 // At least one link is not confirmed
	ExitCommandError = 2 // Fatal setup error (cycle, configuration, load, store, unknown run)
)

// Error code constants shared by every command.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeConfiguration = "E002" // Invalid descriptors or unresolved addresses
	ErrCodeCycle         = "E003" // Dependency cycle between contracts
	ErrCodeLoadFailed    = "E004" // Descriptor, address book or config file could not be loaded
	ErrCodeNotFound      = "E005" // Run not found
	ErrCodeStore         = "E006" // Run store unavailable or a save failed
	ErrCodeChain         = "E007" // Chain client could not be created
	ErrCodeIncomplete    = "E010" // Run finished with unconfirmed links
	ErrCodeRunActive     = "E011" // Run is executing in this process
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitCommandError if the error is not an
// ExitError (cobra argument and flag errors land here).
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// codeFor maps an error to the CLI error code reported in JSON output, or
// "" when the error carries no code of its own.
func codeFor(err error) string {
	switch ir.CodeOf(err) {
	case ir.ErrCodeCycle:
		return ErrCodeCycle
	case ir.ErrCodeConfiguration:
		return ErrCodeConfiguration
	}
	switch {
	case errors.Is(err, ir.ErrRunNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ir.ErrStaleSnapshot):
		return ErrCodeStore
	case errors.Is(err, orchestrator.ErrRunActive):
		return ErrCodeRunActive
	}
	return ""
}

// errorDetails extracts structured details for JSON error output.
func errorDetails(err error) any {
	var (
		cycle  *ir.CycleError
		config *ir.ConfigurationError
	)
	switch {
	case errors.As(err, &cycle):
		return map[string]any{"contracts": cycle.Contracts, "links": cycle.Links}
	case errors.As(err, &config):
		details := map[string]any{}
		if len(config.Unresolved) > 0 {
			details["unresolved"] = config.Unresolved
		}
		if len(config.Problems) > 0 {
			details["problems"] = config.Problems
		}
		return details
	}
	return nil
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// JSON reports whether output is machine-readable.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success outputs a successful result in the configured format.
// Text output prints data with fmt; commands with richer text output
// render it themselves and only call Success for JSON.
func (f *OutputFormatter) Success(data any) error {
	if f.JSON() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Result outputs a payload that carries an outcome, with status "error"
// when ok is false. Used for runs that finish with unconfirmed links.
func (f *OutputFormatter) Result(ok bool, data any, code, message string) error {
	if ok {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	return f.encode(CLIResponse{
		Status: "error",
		Data:   data,
		Error:  &CLIError{Code: code, Message: message},
	})
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err in the configured format and returns it as an
// ExitError carrying exitCode. code is used when err has no code of its own.
func (f *OutputFormatter) Fail(exitCode int, code, message string, err error) error {
	if c := codeFor(err); c != "" {
		code = c
	}
	if code == "" {
		code = ErrCodeGeneric
	}
	_ = f.Error(code, fmt.Sprintf("%s: %v", message, err), errorDetails(err))
	return WrapExitError(exitCode, message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
