// Package tempfile provides temp files scoped to a single transfer. A file is
// acquired for one upload or download and released on every exit path.
package tempfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const prefix = "tgdrive-"

// Dir hands out scoped temp files under one directory
type Dir struct {
	path string
}

// NewDir ensures path exists and returns a Dir rooted there
func NewDir(path string) (*Dir, error) {
	if path == "" {
		path = os.TempDir()
	}
	if err := os.MkdirAll(path, 0o770); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", path, err)
	}
	return &Dir{path: path}, nil
}

// Path returns the directory files are created in
func (d *Dir) Path() string {
	return d.path
}

// Acquire creates an empty temp file tagged with purpose (e.g. a file handle)
func (d *Dir) Acquire(purpose string) (*File, error) {
	pattern := prefix + sanitize(purpose) + "-" + uuid.NewString() + "-*"
	f, err := os.CreateTemp(d.path, pattern)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &File{f: f}, nil
}

// Sweep removes leftover files older than age, e.g. from a crash.
// It returns how many files were removed.
func (d *Dir) Sweep(age time.Duration) (int, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return 0, fmt.Errorf("read temp dir: %w", err)
	}

	cutoff := time.Now().Add(-age)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(d.path, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// File is a temp file that is deleted on Release
type File struct {
	mu       sync.Mutex
	f        *os.File
	released bool
}

// Name returns the path on disk
func (t *File) Name() string {
	return t.f.Name()
}

// Write implements io.Writer
func (t *File) Write(p []byte) (int, error) {
	return t.f.Write(p)
}

// Reader rewinds the file and returns it for reading from the start
func (t *File) Reader() (io.Reader, error) {
	if _, err := t.f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind temp file: %w", err)
	}
	return t.f, nil
}

// Size returns the number of bytes written so far
func (t *File) Size() (int64, error) {
	info, err := t.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Release closes and deletes the file. It is safe to call more than once.
func (t *File) Release() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.released {
		return nil
	}
	t.released = true

	closeErr := t.f.Close()
	removeErr := os.Remove(t.f.Name())
	if errors.Is(removeErr, fs.ErrNotExist) {
		removeErr = nil
	}
	return errors.Join(closeErr, removeErr)
}

func sanitize(s string) string {
	if len(s) > 32 {
		s = s[:32]
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
