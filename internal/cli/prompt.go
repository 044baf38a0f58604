package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// promptConfirmer asks for confirmation on the terminal.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func newPromptConfirmer(in io.Reader, out io.Writer) *promptConfirmer {
	return &promptConfirmer{in: bufio.NewReader(in), out: out}
}

// Confirm prints message and reads one answer line. Only "y" and "yes"
// confirm; end of input counts as no.
func (p *promptConfirmer) Confirm(title, message string) (bool, error) {
	if _, err := fmt.Fprintf(p.out, "%s\n%s (y/N): ", title, message); err != nil {
		return false, err
	}

	response, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}

	response = strings.TrimSpace(strings.ToLower(response))

	return response == "y" || response == "yes", nil
}
