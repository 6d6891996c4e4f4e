package cli

import (
	"fmt"
	"io"
)

// IO writes command output and collects inputs that a command skipped.
//
// Skipped inputs are reported on stderr before the first stdout output and
// again by [IO.Finish], so they survive piping through head or tail.
type IO struct {
	out     io.Writer
	errOut  io.Writer
	skipped []string
	shown   bool
}

// NewIO creates a new IO instance.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Skip records that input name was left out because of err.
func (o *IO) Skip(name string, err error) {
	o.skipped = append(o.skipped, fmt.Sprintf("%s: %v: skipped as mutation target and source", name, err))
}

// Println writes to stdout.
func (o *IO) Println(a ...any) {
	o.showSkipped()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout.
func (o *IO) Printf(format string, a ...any) {
	o.showSkipped()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// Write writes raw bytes to stdout.
func (o *IO) Write(p []byte) (int, error) {
	o.showSkipped()
	return o.out.Write(p)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// ErrPrintf writes formatted output to stderr.
func (o *IO) ErrPrintf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.errOut, format, a...)
}

// Finish repeats the skipped inputs on stderr and returns the exit code of
// a successful command: 1 if anything was skipped, 0 otherwise.
func (o *IO) Finish() int {
	o.showSkipped()

	if len(o.skipped) == 0 {
		return 0
	}

	o.printSkipped()

	return 1
}

func (o *IO) showSkipped() {
	if o.shown {
		return
	}

	o.shown = true
	o.printSkipped()
}

func (o *IO) printSkipped() {
	for _, s := range o.skipped {
		_, _ = fmt.Fprintln(o.errOut, "warning:", s)
	}
}
