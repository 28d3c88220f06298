package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RotatingFileWriter appends log lines to a file and shifts it to numbered
// backups (path.1, path.2, ...) once it would exceed maxSizeBytes.
type RotatingFileWriter struct {
	mu           sync.Mutex
	path         string
	maxSizeBytes int64
	maxBackups   int
	file         *os.File
	size         int64
}

func NewRotatingFileWriter(path string, maxSizeBytes int64, maxBackups int) (*RotatingFileWriter, error) {
	if path == "" {
		return nil, errors.New("log path is required")
	}
	if maxSizeBytes <= 0 {
		return nil, errors.New("maxSizeBytes must be > 0")
	}
	if maxBackups < 0 {
		maxBackups = 0
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	w := &RotatingFileWriter{path: path, maxSizeBytes: maxSizeBytes, maxBackups: maxBackups}
	if err := w.openLocked(os.O_APPEND); err != nil {
		return nil, err
	}
	if w.size > w.maxSizeBytes {
		if err := w.rotateLocked(); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	// A single oversized record still lands in an empty file.
	if w.size > 0 && w.size+int64(len(p)) > w.maxSizeBytes {
		if err := w.rotateLocked(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingFileWriter) openLocked(mode int) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.size = 0
	if mode == os.O_APPEND {
		if stat, err := f.Stat(); err == nil {
			w.size = stat.Size()
		}
	}
	return nil
}

func (w *RotatingFileWriter) rotateLocked() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return err
		}
		w.file = nil
	}

	if w.maxBackups == 0 {
		if err := removeIfExists(w.path); err != nil {
			return err
		}
	} else if err := shiftBackups(w.path, w.maxBackups); err != nil {
		return err
	}

	return w.openLocked(os.O_TRUNC)
}

func shiftBackups(basePath string, maxBackups int) error {
	if err := removeIfExists(backupPath(basePath, maxBackups)); err != nil {
		return err
	}
	for idx := maxBackups - 1; idx >= 0; idx-- {
		src := backupPath(basePath, idx)
		if _, err := os.Stat(src); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := os.Rename(src, backupPath(basePath, idx+1)); err != nil {
			return err
		}
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// backupPath returns basePath itself for idx 0.
func backupPath(basePath string, idx int) string {
	if idx == 0 {
		return basePath
	}
	return fmt.Sprintf("%s.%d", basePath, idx)
}
