// Package assets stores uploaded QR images on local disk and serves them
// under /assets.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
)

const (
	MaxSize   = 1 << 20
	URLPrefix = "/assets/"
)

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
}

type FileStore struct {
	dir     string
	baseURL string
}

// NewFileStore creates dir if needed. baseURL is the public origin the
// returned refs point at.
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("assets: create dir: %w", err)
	}
	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Put(ctx context.Context, blob []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(blob) == 0 || len(blob) > MaxSize {
		return "", domain.NewValidationError("qr", domain.ErrInvalidAsset)
	}

	ext, ok := extensions[http.DetectContentType(blob)]
	if !ok {
		return "", domain.NewValidationError("qr", domain.ErrInvalidAsset)
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), blob, 0o644); err != nil {
		return "", fmt.Errorf("assets: write %s: %w", name, err)
	}

	return s.baseURL + URLPrefix + name, nil
}

// Delete removes the file a ref points at. Unknown refs are ignored.
func (s *FileStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := path.Base(ref)
	if !strings.HasPrefix(ref, s.baseURL+URLPrefix) || name == "." || name == "/" {
		return nil
	}

	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("assets: remove %s: %w", name, err)
	}
	return nil
}
