package storage

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"annotator/internal/config"
	"annotator/internal/logger"
	"annotator/internal/model"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// allowedExtensions lists the source image formats accepted for upload.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// FileStore manages source uploads and rendered images on disk.
type FileStore struct {
	uploadDir string
	renderDir string
	logger    *logger.Logger
}

// NewFileStore creates a FileStore rooted at the configured directories.
func NewFileStore(config *config.Config, logger *logger.Logger) *FileStore {
	return &FileStore{
		uploadDir: config.UploadDirectory,
		renderDir: config.RenderDirectory,
		logger:    logger,
	}
}

// SaveUpload writes an uploaded source image under a fresh name and returns
// its path. The extension of originalName selects the stored extension.
func (s *FileStore) SaveUpload(r io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: unsupported image type %q", model.ErrInvalidInput, ext)
	}

	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	fullpath := filepath.Join(s.uploadDir, uuid.NewString()+ext)
	file, err := os.OpenFile(fullpath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	written, err := io.Copy(file, r)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(fullpath)
		return "", fmt.Errorf("failed to save upload: %w", err)
	}

	s.logger.Info("Saved upload %s (%d bytes)", filepath.Base(fullpath), written)
	return fullpath, nil
}

// NewRenderPath returns an unused path for a rendered image. The file is not
// created.
func (s *FileStore) NewRenderPath() string {
	name := fmt.Sprintf("%s-%s.jpeg", time.Now().Format("20060102150405"), uuid.NewString())
	return filepath.Join(s.renderDir, name)
}

// RenderPath resolves a rendered image name inside the render directory.
func (s *FileStore) RenderPath(name string) string {
	return filepath.Join(s.renderDir, filepath.Base(name))
}

// Remove deletes a file. Missing files and empty paths are not an error.
func (s *FileStore) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// ImageSize reads the pixel dimensions of an image without decoding it.
func (s *FileStore) ImageSize(path string) (width, height int, err error) {
	return ImageSize(path)
}

// ImageSize reads the pixel dimensions of an image file header.
func ImageSize(path string) (width, height int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s: %v", model.ErrDecode, path, err)
	}
	return cfg.Width, cfg.Height, nil
}
