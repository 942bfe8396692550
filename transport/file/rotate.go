package file

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// RotateConfig controls size-based rotation.
type RotateConfig struct {
	// FilePath is the active file (required).
	FilePath string

	// MaxBytes triggers rotation before a write would exceed it. Zero
	// disables rotation.
	MaxBytes int64

	// MaxBackups is the number of rotated files kept. Zero keeps all.
	MaxBackups int
}

// RotatingFile is an io.WriteCloser that shifts the active file to
// FilePath.1 (and older backups to .2, .3, ...) once it is full.
type RotatingFile struct {
	mu     sync.Mutex
	cfg    RotateConfig
	file   *os.File
	size   int64
	logger *slog.Logger
}

// NewRotatingFile opens cfg.FilePath for appending.
func NewRotatingFile(cfg RotateConfig, logger *slog.Logger) (*RotatingFile, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("transport/file: rotate: FilePath is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("transport/file: rotate: %w", err)
	}
	rf := &RotatingFile{cfg: cfg, logger: logger}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

// Write implements io.Writer. A record larger than MaxBytes still goes to a
// fresh file rather than being dropped.
func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file == nil {
		return 0, os.ErrClosed
	}

	if rf.cfg.MaxBytes > 0 && rf.size > 0 && rf.size+int64(len(p)) > rf.cfg.MaxBytes {
		if err := rf.rotate(); err != nil {
			// Keep writing to whatever is open rather than lose the record.
			rf.logger.Error("transport/file: rotate failed", "error", err.Error())
		}
	}
	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

// Close implements io.Closer.
func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}

func (rf *RotatingFile) open() error {
	f, err := os.OpenFile(rf.cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("transport/file: rotate: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("transport/file: rotate: %w", err)
	}
	rf.file, rf.size = f, info.Size()
	return nil
}

func (rf *RotatingFile) rotate() error {
	if err := rf.file.Close(); err != nil {
		rf.logger.Warn("transport/file: close before rotate", "error", err.Error())
	}
	rf.file = nil

	backups := rf.backups()
	// Shift from the oldest down so no rename overwrites a backup.
	for i := len(backups) - 1; i >= 0; i-- {
		n := backups[i]
		if rf.cfg.MaxBackups > 0 && n >= rf.cfg.MaxBackups {
			_ = os.Remove(rf.backupName(n))
			continue
		}
		if err := os.Rename(rf.backupName(n), rf.backupName(n+1)); err != nil {
			rf.logger.Warn("transport/file: shift backup", "error", err.Error())
		}
	}
	if err := os.Rename(rf.cfg.FilePath, rf.backupName(1)); err != nil && !os.IsNotExist(err) {
		rf.logger.Warn("transport/file: rename active file", "error", err.Error())
	}
	rf.logger.Info("transport/file: rotated", "file", rf.cfg.FilePath)
	return rf.open()
}

func (rf *RotatingFile) backupName(n int) string {
	return rf.cfg.FilePath + "." + strconv.Itoa(n)
}

// backups returns the numeric suffixes of existing backups, ascending.
func (rf *RotatingFile) backups() []int {
	matches, _ := filepath.Glob(rf.cfg.FilePath + ".*")
	prefix := rf.cfg.FilePath + "."
	var out []int
	for _, m := range matches {
		n, err := strconv.Atoi(strings.TrimPrefix(m, prefix))
		if err != nil || n < 1 {
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
