package fieldexplorer

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Line terminators supported by the Writer.
const (
	CRLF = "\r\n"
	LF   = "\n"
)

// Writer writes plot files. Fields are quoted only when they contain a
// comma, a double quote or a line break.
type Writer struct {
	w          *bufio.Writer
	terminator string
	rows       int
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithTerminator sets the line terminator. The default is CRLF.
func WithTerminator(term string) WriterOption {
	return func(w *Writer) {
		if term != "" {
			w.terminator = term
		}
	}
}

// NewWriter returns a Writer that writes to w.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	fw := &Writer{
		w:          bufio.NewWriter(w),
		terminator: CRLF,
	}

	for _, opt := range opts {
		opt(fw)
	}

	return fw
}

// WriteHeader writes the column row.
func (w *Writer) WriteHeader() error {
	return w.writeRow(Header)
}

// Write writes one plot row.
func (w *Writer) Write(r PlotRecord) error {
	if err := w.writeRow(r.Row()); err != nil {
		return err
	}

	w.rows++

	return nil
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flushing plot file: %w", err)
	}

	return nil
}

// Rows returns the number of plot rows written so far.
func (w *Writer) Rows() int { return w.rows }

func (w *Writer) writeRow(fields []string) error {
	for i, f := range fields {
		if i > 0 {
			w.w.WriteByte(',') //nolint:errcheck // sticky error reported by WriteString below
		}

		if needsQuotes(f) {
			f = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
		}

		w.w.WriteString(f) //nolint:errcheck // sticky error reported below
	}

	if _, err := w.w.WriteString(w.terminator); err != nil {
		return fmt.Errorf("writing plot row: %w", err)
	}

	return nil
}

func needsQuotes(field string) bool {
	return strings.ContainsAny(field, ",\"\r\n")
}

// WriteAll writes a complete plot file and flushes it.
func WriteAll(w io.Writer, records []PlotRecord, opts ...WriterOption) error {
	fw := NewWriter(w, opts...)

	if err := fw.WriteHeader(); err != nil {
		return err
	}

	for _, r := range records {
		if err := fw.Write(r); err != nil {
			return err
		}
	}

	return fw.Flush()
}
