package cli

import (
	"io"
	"time"

	"github.com/fatih/color"
)

// terminalNotifier reports export outcomes on the terminal: successes with
// a green check mark on out, failures with a red cross on errOut.
type terminalNotifier struct {
	out    io.Writer
	errOut io.Writer

	successColor *color.Color
	errorColor   *color.Color
}

func newTerminalNotifier(out, errOut io.Writer, noColor bool) *terminalNotifier {
	n := &terminalNotifier{
		out:          out,
		errOut:       errOut,
		successColor: color.New(color.FgGreen, color.Bold),
		errorColor:   color.New(color.FgRed, color.Bold),
	}

	if noColor {
		n.successColor.DisableColor()
		n.errorColor.DisableColor()
	}

	return n
}

// Error prints a failed export.
func (n *terminalNotifier) Error(message string) {
	_, _ = n.errorColor.Fprintf(n.errOut, "✗ %s\n", message)
}

// Success prints a completed export. A terminal line does not expire, so
// the duration is ignored.
func (n *terminalNotifier) Success(message string, _ time.Duration) {
	_, _ = n.successColor.Fprintf(n.out, "✓ %s\n", message)
}
