// Package docs stores uploaded documents on disk and hands out opaque
// handles. The queue engine only ever stores the handle; a job whose
// handle no longer resolves (after a restart, or a walk-in order that
// never had a file) is reported as having no printable file.
package docs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

var ErrNoDocument = errors.New("no printable file for this job")

type Library struct {
	dir string
}

func NewLibrary(dir string) (*Library, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create documents directory: %w", err)
	}
	return &Library{dir: dir}, nil
}

// Put stores the document and returns its handle.
func (l *Library) Put(r io.Reader) (string, error) {
	handle := uuid.NewString()

	f, err := os.Create(l.path(handle))
	if err != nil {
		return "", fmt.Errorf("failed to create document file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(l.path(handle))
		return "", fmt.Errorf("failed to write document: %w", err)
	}

	return handle, nil
}

// Open resolves a handle to its stored content. An empty or unknown
// handle yields ErrNoDocument.
func (l *Library) Open(handle string) (io.ReadCloser, error) {
	if handle == "" {
		return nil, ErrNoDocument
	}
	if _, err := uuid.Parse(handle); err != nil {
		return nil, ErrNoDocument
	}

	f, err := os.Open(l.path(handle))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoDocument
		}
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	return f, nil
}

func (l *Library) Remove(handle string) {
	if handle == "" {
		return
	}
	if _, err := uuid.Parse(handle); err != nil {
		return
	}
	os.Remove(l.path(handle))
}

func (l *Library) path(handle string) string {
	return filepath.Join(l.dir, handle)
}
