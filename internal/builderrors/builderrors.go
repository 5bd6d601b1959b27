// Package builderrors gives each error kind in the build engine's error
// taxonomy a concrete Go type carrying the exit code it should produce,
// instead of ad hoc fmt.Errorf strings.
package builderrors

import (
	"errors"
	"fmt"
)

// Kind categorizes a build error.
type Kind string

const (
	KindGraph          Kind = "GRAPH"           // multiply-defined output, unknown target, cycle
	KindParse          Kind = "PARSE"           // re-surfaced from the external parser
	KindLogCorruption  Kind = "LOG_CORRUPTION"  // BuildLog/DepsLog malformed, recovered locally
	KindStat           Kind = "STAT"            // unexpected errno other than ENOENT/ENOTDIR
	KindCommandFailure Kind = "COMMAND_FAILURE" // non-zero exit from a spawned command
	KindIO             Kind = "IO"              // writing logs failed
)

// Exit codes per spec: 0 success, 1 build failure, 2 graph/parse error.
const (
	ExitSuccess      = 0
	ExitBuildFailure = 1
	ExitGraphError   = 2
)

// Error is a typed build error with an associated exit code and, where
// relevant, the path that produced it.
type Error struct {
	Kind Kind
	Path string // optional: the file/edge path that triggered the error
	Msg  string
	Err  error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Path != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Path, e.Msg, e.Err)
		}
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode maps an error's Kind to the CLI exit code it should produce.
// Non-Error values (or nil) map to ExitSuccess/ExitBuildFailure per the
// usual Go convention of "nil error means success".
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var be *Error
	if !errors.As(err, &be) {
		return ExitBuildFailure
	}
	switch be.Kind {
	case KindGraph, KindParse:
		return ExitGraphError
	default:
		return ExitBuildFailure
	}
}

// Graph wraps a graph-construction or want-set error.
func Graph(path, msg string) *Error {
	return &Error{Kind: KindGraph, Path: path, Msg: msg}
}

// Parse wraps a re-surfaced parse error.
func Parse(path, msg string) *Error {
	return &Error{Kind: KindParse, Path: path, Msg: msg}
}

// LogCorruption wraps a recoverable log-corruption condition.
func LogCorruption(path, msg string, err error) *Error {
	return &Error{Kind: KindLogCorruption, Path: path, Msg: msg, Err: err}
}

// Stat wraps an unexpected stat errno.
func Stat(path string, err error) *Error {
	return &Error{Kind: KindStat, Path: path, Msg: "stat failed", Err: err}
}

// CommandFailure wraps a non-zero command exit.
func CommandFailure(path, msg string) *Error {
	return &Error{Kind: KindCommandFailure, Path: path, Msg: msg}
}

// IO wraps a fatal log I/O failure.
func IO(path string, err error) *Error {
	return &Error{Kind: KindIO, Path: path, Msg: "I/O failure", Err: err}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, k Kind) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == k
}
