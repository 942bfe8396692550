// Package file delivers formatted scan records as newline-delimited JSON to
// standard output or to a size-rotated file.
package file

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Transport delivers one pre-formatted record per Send. Close flushes and
// releases whatever the transport owns.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// Config selects the destination. Path takes precedence over Writer; with
// neither set records go to os.Stdout.
type Config struct {
	// Path is the output file. Parent directories are created.
	Path string

	// MaxBytes rotates Path once it would grow beyond this size. Zero
	// disables rotation.
	MaxBytes int64

	// MaxBackups caps the number of rotated files kept. Zero keeps all.
	MaxBackups int

	// Writer is used when Path is empty. It is not closed by the transport.
	Writer io.Writer
}

// WriterTransport writes each record followed by "\n". It is safe for
// concurrent use; records are never interleaved.
type WriterTransport struct {
	mu     sync.Mutex
	w      io.Writer
	owned  io.Closer
	logger *slog.Logger
}

// New opens the destination described by cfg.
func New(cfg Config, logger *slog.Logger) (*WriterTransport, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	t := &WriterTransport{logger: logger}
	switch {
	case cfg.Path != "":
		rf, err := NewRotatingFile(RotateConfig{
			FilePath:   cfg.Path,
			MaxBytes:   cfg.MaxBytes,
			MaxBackups: cfg.MaxBackups,
		}, logger)
		if err != nil {
			return nil, err
		}
		t.w, t.owned = rf, rf
	case cfg.Writer != nil:
		t.w = cfg.Writer
	default:
		t.w = os.Stdout
	}
	return t, nil
}

// Send writes data and a trailing newline in a single Write so a rotation
// never splits a record.
func (t *WriterTransport) Send(data []byte) error {
	rec := make([]byte, 0, len(data)+1)
	rec = append(rec, data...)
	rec = append(rec, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.w.Write(rec); err != nil {
		t.logger.Error("transport/file: write failed", "error", err.Error(), "bytes", len(data))
		return fmt.Errorf("transport/file: write: %w", err)
	}
	t.logger.Debug("transport/file: sent record", "bytes", len(data))
	return nil
}

// Close closes the output file when the transport opened it.
func (t *WriterTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.owned == nil {
		return nil
	}
	err := t.owned.Close()
	t.owned = nil
	return err
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
