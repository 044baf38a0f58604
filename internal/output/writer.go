package output

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrClosed is returned when writing to or committing a closed sink.
var ErrClosed = errors.New("sink is closed")

// Sink is a write destination whose content is published by Commit.
// Close releases the sink; closing an uncommitted sink discards what was
// written. Close is safe to call more than once and after Commit.
type Sink interface {
	io.Writer
	Commit() error
	Close() error
}

// StdoutSink collects writes in memory and passes them to a writer,
// os.Stdout by default, on Commit. Closing an uncommitted sink drops what
// was written, so a failed run prints nothing.
type StdoutSink struct {
	out    io.Writer
	buf    bytes.Buffer
	closed bool
}

// NewStdoutSink creates a sink that writes to w. If w is nil, os.Stdout is
// used.
func NewStdoutSink(w io.Writer) *StdoutSink {
	if w == nil {
		w = os.Stdout
	}

	return &StdoutSink{out: w}
}

// Write buffers p until Commit.
func (s *StdoutSink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}

	return s.buf.Write(p)
}

// Commit sends the buffered content to the underlying writer.
func (s *StdoutSink) Commit() error {
	if s.closed {
		return ErrClosed
	}

	if _, err := s.buf.WriteTo(s.out); err != nil {
		return fmt.Errorf("writing to stdout: %w", err)
	}

	return nil
}

// Close drops anything not yet committed.
func (s *StdoutSink) Close() error {
	s.closed = true
	s.buf.Reset()

	return nil
}

// AtomicFile writes to a temporary file in the target directory and renames
// it over the target on Commit.
type AtomicFile struct {
	path      string
	perm      os.FileMode
	logger    *slog.Logger
	tmp       *os.File
	committed bool
	closed    bool
}

// FileOption configures an AtomicFile.
type FileOption func(*AtomicFile)

// WithPermissions overrides the default file permissions (0644).
func WithPermissions(perm os.FileMode) FileOption {
	return func(f *AtomicFile) {
		f.perm = perm
	}
}

// WithLogger sets a logger for the AtomicFile.
func WithLogger(logger *slog.Logger) FileOption {
	return func(f *AtomicFile) {
		f.logger = logger
	}
}

// CreateAtomic opens a temporary file for path. The target directory must
// exist; nothing is created or modified at path until Commit.
func CreateAtomic(path string, opts ...FileOption) (*AtomicFile, error) {
	f := &AtomicFile{
		path:   path,
		perm:   0o644,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temporary file for %s: %w", path, err)
	}

	f.tmp = tmp

	return f, nil
}

// Write appends p to the temporary file.
func (f *AtomicFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}

	n, err := f.tmp.Write(p)
	if err != nil {
		return n, fmt.Errorf("writing %s: %w", f.path, err)
	}

	return n, nil
}

// Commit syncs the temporary file and renames it to the target path.
func (f *AtomicFile) Commit() error {
	if f.closed {
		return ErrClosed
	}

	f.closed = true
	tmpName := f.tmp.Name()

	if err := f.finish(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if _, err := os.Stat(f.path); err == nil {
		f.logger.Warn("overwriting existing file", slog.String("path", f.path))
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming %s to %s: %w", tmpName, f.path, err)
	}

	f.committed = true

	return nil
}

func (f *AtomicFile) finish() error {
	if err := f.tmp.Sync(); err != nil {
		_ = f.tmp.Close()
		return fmt.Errorf("syncing %s: %w", f.path, err)
	}

	if err := f.tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", f.path, err)
	}

	if err := os.Chmod(f.tmp.Name(), f.perm); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", f.path, err)
	}

	return nil
}

// Close discards the temporary file unless the sink was committed.
func (f *AtomicFile) Close() error {
	if f.closed {
		return nil
	}

	f.closed = true

	closeErr := f.tmp.Close()
	if err := os.Remove(f.tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", f.tmp.Name(), err)
	}

	if closeErr != nil {
		return fmt.Errorf("closing %s: %w", f.path, closeErr)
	}

	return nil
}

// Path returns the target file path.
func (f *AtomicFile) Path() string {
	return f.path
}

// Committed reports whether the target path holds the written content.
func (f *AtomicFile) Committed() bool {
	return f.committed
}
