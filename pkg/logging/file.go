// pkg/logging/file.go - append-only log file that is opened on first write.

package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// lazyFile is a zapcore.WriteSyncer. Serialisation is provided by zapcore.Lock
// in New, so lazyFile itself is not safe for unguarded concurrent use.
type lazyFile struct {
	path string
	f    *os.File
}

func newLazyFile(path string) *lazyFile {
	return &lazyFile{path: path}
}

func (lf *lazyFile) open() error {
	if lf.f != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(lf.path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(lf.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", lf.path, err)
	}
	lf.f = f
	return nil
}

// Write appends p in a single write call so each entry lands as a whole line.
func (lf *lazyFile) Write(p []byte) (int, error) {
	if err := lf.open(); err != nil {
		return 0, err
	}
	return lf.f.Write(p)
}

func (lf *lazyFile) Sync() error {
	if lf.f == nil {
		return nil
	}
	return lf.f.Sync()
}

func (lf *lazyFile) Close() error {
	if lf.f == nil {
		return nil
	}
	err := lf.f.Close()
	lf.f = nil
	return err
}
