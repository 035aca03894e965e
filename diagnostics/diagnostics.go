// Package diagnostics formats heap and configuration errors and prints them
// in a consistent way.
package diagnostics

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/RNabel/BartlettsMostlyCopying/gc"
)

// A single diagnostic.
type Diagnostic struct {
	// Component that raised the error: "gc", "config" or "shim".
	Component string

	Msg string

	// Fatal marks failures after which the heap must be discarded.
	Fatal bool
}

// Diagnostics of a whole run. CreateDiagnostics produces a single entry per
// error; a script failure that wraps a heap failure is reported as that heap
// failure.
type ProgramDiagnostic []Diagnostic

// CreateDiagnostics reads the underlying errors in the error object and
// creates a set of diagnostics that can be readily printed.
func CreateDiagnostics(err error) ProgramDiagnostic {
	if err == nil {
		return nil
	}
	var progDiag ProgramDiagnostic
	var fatal *gc.FatalError
	switch {
	case errors.As(err, &fatal):
		progDiag = append(progDiag, Diagnostic{
			Component: "gc",
			Msg:       fatal.Kind.String() + ": " + fatal.Msg,
			Fatal:     true,
		})
	case isConfigError(err):
		progDiag = append(progDiag, Diagnostic{
			Component: "config",
			Msg:       err.Error(),
		})
	default:
		progDiag = append(progDiag, Diagnostic{
			Component: "shim",
			Msg:       err.Error(),
		})
	}
	return progDiag
}

// isConfigError reports whether the error came out of the heapopts package,
// which stamps a prefix on everything it returns.
func isConfigError(err error) bool {
	return strings.HasPrefix(err.Error(), "heapopts:")
}

// WriteTo writes the program diagnostics to the given writer. The writer is
// expected to cope with ANSI escape sequences (wrap it with
// go-colorable when printing to a terminal).
func (progDiag ProgramDiagnostic) WriteTo(w io.Writer) {
	for _, diag := range progDiag {
		diag.WriteTo(w)
	}
}

// WriteTo writes this diagnostic to the given writer as a single line.
func (diag Diagnostic) WriteTo(w io.Writer) {
	severity := "error"
	if diag.Fatal {
		severity = "fatal"
	}
	fmt.Fprintf(w, "\x1b[1m%s: \x1b[31m%s:\x1b[0m %s\n", diag.Component, severity, diag.Msg)
}
