// Package klog is the kernel's diagnostic logger: a thin wrapper
// around fmt.Fprintf onto an io.Writer, matching the teacher's direct
// fmt.Printf-at-the-call-site style (see mem.Phys_init) rather than a
// structured logging library — there is no file descriptor table or
// JSON sink to write to this early in boot.
package klog

import (
	"fmt"
	"io"
	"os"
)

// Logger writes formatted diagnostics to an underlying writer. The
// zero value writes to os.Stderr, matching hosted test builds; a real
// platform supplies its own console writer.
type Logger struct {
	out io.Writer
}

// New wraps w. If w is nil, os.Stderr is used.
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{out: w}
}

// Printf writes one formatted diagnostic line, matching the teacher's
// fmt.Printf-style call sites.
func (l *Logger) Printf(format string, args ...any) {
	out := l.out
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintf(out, format, args...)
}

// std is the package-level logger used by code that hasn't been
// handed an explicit Logger (boot's very earliest diagnostics, before
// a console writer is known).
var std = New(nil)

// Printf writes to the package default logger.
func Printf(format string, args ...any) {
	std.Printf(format, args...)
}

// SetOutput redirects the package default logger, e.g. once boot has
// identified a real console device.
func SetOutput(w io.Writer) {
	std = New(w)
}
