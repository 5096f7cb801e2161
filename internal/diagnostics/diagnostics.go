// Package diagnostics prints the client's fatal and best-effort diagnostics
// to stderr, colorizing them the way an interactive terminal expects.
//
// The original client reduces "terminal color detection" to a capability
// hook; chgo backs that hook with github.com/fatih/color (as
// nabbar-golib/console does for its own colorType), gated on HGPLAIN being
// unset and stderr being a TTY.
package diagnostics

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Writer prints fatal and warning diagnostics to an output stream,
// optionally colorized.
type Writer struct {
	out     io.Writer
	abort   *color.Color
	warn    *color.Color
	enabled bool
}

// New builds a Writer targeting out. Color is enabled only when plain is
// false and out is connected to a terminal.
func New(out *os.File, plain bool) *Writer {
	enabled := !plain && term.IsTerminal(int(out.Fd()))
	return &Writer{
		out:     out,
		abort:   color.New(color.FgRed, color.Bold),
		warn:    color.New(color.FgYellow),
		enabled: enabled,
	}
}

// Abort prints a fatal diagnostic in the form chgo's callers use just
// before calling os.Exit with a non-zero code.
func (w *Writer) Abort(format string, args ...any) {
	msg := fmt.Sprintf("chgo: abort: "+format+"\n", args...)
	if w.enabled {
		w.abort.Fprint(w.out, msg)
		return
	}
	fmt.Fprint(w.out, msg)
}

// Warn prints a non-fatal diagnostic.
func (w *Writer) Warn(format string, args ...any) {
	msg := fmt.Sprintf("chgo: "+format+"\n", args...)
	if w.enabled {
		w.warn.Fprint(w.out, msg)
		return
	}
	fmt.Fprint(w.out, msg)
}
