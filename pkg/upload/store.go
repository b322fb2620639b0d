package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Descriptor is the normalized result of an accepted upload, for the
// handler to persist alongside the owning record.
type Descriptor struct {
	OriginalName string    `json:"original_name"`
	Filename     string    `json:"filename"`
	MIMEType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	Path         string    `json:"path"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Store persists and removes uploaded files. The pipeline only needs
// write and delete; delete doubles as the compensating action when a
// downstream step fails after the file was written.
type Store interface {
	// Save writes the stream and returns the storage path.
	Save(filename string, r io.Reader) (path string, size int64, err error)

	// Delete removes a stored file. Deleting a missing file is not an
	// error.
	Delete(path string) error

	// ReadHead returns the first n bytes of a stored file.
	ReadHead(path string, n int) ([]byte, error)
}

// DiskStore stores uploads on the local filesystem, one subdirectory
// per top-level media type.
type DiskStore struct {
	root string
}

// NewDiskStore creates the upload directory if needed
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &DiskStore{root: root}, nil
}

// Save writes the stream under root, creating the media-type
// subdirectory on first use.
func (s *DiskStore) Save(filename string, r io.Reader) (string, int64, error) {
	path := filepath.Join(s.root, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", 0, fmt.Errorf("creating upload subdir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("creating upload file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("writing upload: %w", err)
	}
	return path, size, nil
}

// Delete removes a stored file
func (s *DiskStore) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting upload: %w", err)
	}
	return nil
}

// ReadHead returns the first n bytes of a stored file
func (s *DiskStore) ReadHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	head := make([]byte, n)
	read, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("reading upload head: %w", err)
	}
	return head[:read], nil
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// SecureFilename generates a collision-resistant storage name under a
// media-type subdirectory, preserving a sanitized trace of the
// original name for operators.
func SecureFilename(originalName, mimeType, ext string) string {
	base := strings.TrimSuffix(originalName, filepath.Ext(originalName))
	sanitized := unsafeNameChars.ReplaceAllString(base, "_")
	if len(sanitized) > 40 {
		sanitized = sanitized[:40]
	}

	mediaType := "file"
	if i := strings.Index(mimeType, "/"); i > 0 {
		mediaType = mimeType[:i]
	}

	return filepath.Join(mediaType, fmt.Sprintf("%d_%s_%s%s",
		time.Now().UnixMilli(), uuid.NewString(), sanitized, ext))
}
