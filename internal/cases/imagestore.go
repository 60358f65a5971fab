package cases

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileImageStore persists case images on the local filesystem and
// serves them under a public URL prefix.
type FileImageStore struct {
	dir       string
	urlPrefix string
}

// NewFileImageStore creates an image store rooted at dir. Stored
// images are addressable under urlPrefix (for example "/images").
func NewFileImageStore(dir, urlPrefix string) (*FileImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &FileImageStore{
		dir:       dir,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}, nil
}

// Save writes the image bytes and returns the URL the client can load
// it from. The stored name is randomized so uploads cannot collide or
// traverse outside the store directory.
func (s *FileImageStore) Save(ctx context.Context, caseID, filename string, data []byte) (string, error) {
	ext := filepath.Ext(filepath.Base(filename))
	name := fmt.Sprintf("%s-%s%s", caseID, uuid.New().String(), ext)

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	return s.urlPrefix + "/" + name, nil
}

// Dir returns the directory images are stored in, for mounting a
// static file handler.
func (s *FileImageStore) Dir() string {
	return s.dir
}
