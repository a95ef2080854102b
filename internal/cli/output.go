package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // everything passed
	ExitFailure      = 1 // one or more scenarios or comparisons failed
	ExitCommandError = 2 // bad flags, unreadable configuration, missing paths
)

// ExitError carries the exit code a command failed with.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

// NewExitError creates an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError creates an ExitError around err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// ExitCode maps err to a process exit code. Errors that are not an
// ExitError are command errors.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// Output writes command results as text or as a JSON envelope.
type Output struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func newOutput(opts *RootOptions, stdout, stderr io.Writer) *Output {
	return &Output{Format: opts.Format, Writer: stdout, ErrWriter: stderr, Verbose: opts.Verbose}
}

// Response is the JSON envelope of every command.
type Response struct {
	Status string         `json:"status"`
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError describes a failed command in JSON output.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (o *Output) JSON() bool { return o.Format == "json" }

// Result writes data. Text output uses text when it is not empty, data
// otherwise.
func (o *Output) Result(data any, text string) error {
	if o.JSON() {
		return json.NewEncoder(o.Writer).Encode(Response{Status: "ok", Data: data})
	}
	if text == "" {
		text = fmt.Sprint(data)
	}
	_, err := fmt.Fprintln(o.Writer, text)
	return err
}

// Fail reports err. JSON output gets an error envelope on the result
// writer; text output goes to the error writer.
func (o *Output) Fail(err error) {
	if o.JSON() {
		_ = json.NewEncoder(o.Writer).Encode(Response{
			Status: "error",
			Error:  &ResponseError{Code: ExitCode(err), Message: err.Error()},
		})
		return
	}
	fmt.Fprintf(o.Diagnostics(), "Error: %v\n", err)
}

// Verbosef writes a diagnostic line when verbose output is on.
func (o *Output) Verbosef(format string, args ...any) {
	if !o.Verbose {
		return
	}
	fmt.Fprintf(o.Diagnostics(), format+"\n", args...)
}

// Diagnostics is where logs and progress go. In JSON mode they must stay
// off the result writer.
func (o *Output) Diagnostics() io.Writer {
	if o.ErrWriter != nil {
		return o.ErrWriter
	}
	return o.Writer
}
