package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/n2go/n2go/internal/builderrors"
)

// Exit codes, mirroring spec.md §7's error-taxonomy-to-exit-code mapping
// via builderrors.ExitCode, plus ExitUsage for CLI-usage errors. Cobra flag
// errors and an invalid --format reach GetExitCode as plain errors and map
// to ExitFailure, not ExitUsage.
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// exitCoder is implemented by errors that already know their exit code
// (e.g. build.go's exitError, whose message was reported separately via
// a Formatter and which carries no text of its own).
type exitCoder interface {
	ExitCode() int
}

// GetExitCode extracts the process exit code for err: 0 for nil, an
// exitCoder's own code if it implements one, the typed builderrors code
// (graph/parse errors exit 2) if err wraps one, ExitFailure otherwise
// (e.g. a command failure or keep-going budget exhaustion).
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if ec, ok := err.(exitCoder); ok {
		return ec.ExitCode()
	}
	return builderrors.ExitCode(err)
}

// Response is the standard JSON shape for --format json output,
// grounded on the teacher's CLIResponse.
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Formatter renders a build's final result as either plain text or JSON.
type Formatter struct {
	Format string // "text" | "json"
	Writer io.Writer
}

// Success writes a successful result.
func (f *Formatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes a failed result.
func (f *Formatter) Error(err error) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "error", Error: err.Error()})
	}
	fmt.Fprintln(f.Writer, err)
	return nil
}
