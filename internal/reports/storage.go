package reports

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/crewstay/crewstay/internal/billing/export"
)

// FileStorage keeps rendered reports on local disk.
type FileStorage struct {
	dir     string
	baseURL string
}

// NewFileStorage builds a storage rooted at dir. An empty dir falls back to the
// system temp directory.
func NewFileStorage(dir, baseURL string) *FileStorage {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join(os.TempDir(), "crewstay-reports")
	}
	return &FileStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

// Save streams write into the report file and returns its path.
func (s *FileStorage) Save(id uuid.UUID, format export.Format, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(s.dir, "report-*.tmp")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, fmt.Sprintf("report-%s%s", id, format.Extension()))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// URL returns the public download link for a report, or "" without a base URL.
func (s *FileStorage) URL(id uuid.UUID) string {
	if s.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/reports/%s/download", s.baseURL, id)
}

// Open returns the stored file.
func (s *FileStorage) Open(path string) (*os.File, error) {
	return os.Open(path)
}

// Remove deletes the stored file, ignoring files already gone.
func (s *FileStorage) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
