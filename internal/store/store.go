// Package store manages uploaded presentations and translated outputs on
// disk, and serialises access to individual documents.
package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// UploadError reports a rejected upload.
type UploadError struct {
	Filename string
	Reason   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s rejected: %s", e.Filename, e.Reason)
}

// DefaultMaxUploadBytes caps uploads at 50 MiB.
const DefaultMaxUploadBytes = 50 << 20

// Store keeps uploads and translation outputs in two directories and hands
// out per-document locks so concurrent edits to the same file serialise.
type Store struct {
	uploadDir      string
	outputDir      string
	maxUploadBytes int64

	locks sync.Map // filename -> *sync.Mutex
}

// New creates the upload and output directories if needed.
// maxUploadBytes <= 0 selects DefaultMaxUploadBytes.
func New(uploadDir, outputDir string, maxUploadBytes int64) (*Store, error) {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	for _, dir := range []string{uploadDir, outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &Store{uploadDir: uploadDir, outputDir: outputDir, maxUploadBytes: maxUploadBytes}, nil
}

// SaveUpload validates and stores an uploaded presentation, returning the
// sanitised filename it was stored under.
func (s *Store) SaveUpload(filename string, r io.Reader) (string, error) {
	name := sanitizeFilename(filename)
	if name == "" {
		return "", &UploadError{Filename: filename, Reason: "empty filename"}
	}
	if !strings.EqualFold(filepath.Ext(name), ".pptx") {
		return "", &UploadError{Filename: name, Reason: "only .pptx files are supported"}
	}

	tmp, err := os.CreateTemp(s.uploadDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, s.maxUploadBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if n == 0 {
		return "", &UploadError{Filename: name, Reason: "empty file"}
	}
	if n > s.maxUploadBytes {
		return "", &UploadError{Filename: name, Reason: fmt.Sprintf("file exceeds %d byte limit", s.maxUploadBytes)}
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.uploadDir, name)); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return name, nil
}

// UploadPath returns the on-disk path of an uploaded file.
func (s *Store) UploadPath(filename string) string {
	return filepath.Join(s.uploadDir, sanitizeFilename(filename))
}

// OutputPath returns the on-disk path of a translated output file.
func (s *Store) OutputPath(filename string) string {
	return filepath.Join(s.outputDir, sanitizeFilename(filename))
}

// WriteOutput persists a translated document. The write goes to a temp file
// first so readers never observe a partial document.
func (s *Store) WriteOutput(filename string, data []byte) error {
	name := sanitizeFilename(filename)
	tmp, err := os.CreateTemp(s.outputDir, ".output-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.outputDir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store output: %w", err)
	}
	return nil
}

// ReadOutput loads a translated document.
func (s *Store) ReadOutput(filename string) ([]byte, error) {
	return os.ReadFile(s.OutputPath(filename))
}

// OutputInfo returns the modification time of an output file, used as a
// cheap content version for preview caching.
func (s *Store) OutputInfo(filename string) (time.Time, error) {
	fi, err := os.Stat(s.OutputPath(filename))
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// OutputExists reports whether a translated output is present.
func (s *Store) OutputExists(filename string) bool {
	_, err := os.Stat(s.OutputPath(filename))
	return err == nil
}

// WithLock runs fn while holding the lock for filename. Edits and
// regenerations of the same document serialise through here.
func (s *Store) WithLock(filename string, fn func() error) error {
	v, _ := s.locks.LoadOrStore(sanitizeFilename(filename), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// OutputName derives the translated document's filename from the upload
// name and target language: deck.pptx translated to es becomes
// deck_es.pptx.
func OutputName(uploadName, targetLang string) string {
	ext := filepath.Ext(uploadName)
	stem := strings.TrimSuffix(uploadName, ext)
	return fmt.Sprintf("%s_%s%s", stem, targetLang, ext)
}

// sanitizeFilename strips any path components so stored names cannot
// escape the managed directories.
func sanitizeFilename(filename string) string {
	name := filepath.Base(filepath.Clean(filename))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}
