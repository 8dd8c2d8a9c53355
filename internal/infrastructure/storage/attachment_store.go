package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/fpfinfo/sosfu/internal/application/port"
	"github.com/fpfinfo/sosfu/internal/domain/entity"
	"github.com/fpfinfo/sosfu/internal/domain/workflow"
	"go.uber.org/zap"
)

// LocalAttachmentStore implements port.AttachmentStore over a local
// directory. Attachment ids map to files stored under the base dir; the
// stored name keeps the original extension so the MIME type survives.
type LocalAttachmentStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalAttachmentStore creates a local attachment store
func NewLocalAttachmentStore(baseDir string, logger *zap.Logger) *LocalAttachmentStore {
	return &LocalAttachmentStore{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Save writes the attachment bytes and returns its reference
func (s *LocalAttachmentStore) Save(ctx context.Context, id, name string, content []byte) (*entity.AttachmentRef, error) {
	path, err := s.resolve(id, name)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		s.logger.Error("Failed to create attachment directory",
			zap.String("path", filepath.Dir(path)), zap.Error(err))
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		s.logger.Error("Failed to write attachment",
			zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to write attachment: %w", err)
	}

	s.logger.Debug("Attachment saved",
		zap.String("id", id),
		zap.Int("size", len(content)))

	return &entity.AttachmentRef{ID: id, Name: name, Size: int64(len(content))}, nil
}

// Read returns the raw bytes and MIME type of the referenced file
func (s *LocalAttachmentStore) Read(ctx context.Context, ref entity.AttachmentRef) ([]byte, string, error) {
	path, err := s.resolve(ref.ID, ref.Name)
	if err != nil {
		return nil, "", err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: attachment %s", workflow.ErrNotFound, ref.ID)
		}
		s.logger.Error("Failed to read attachment",
			zap.String("id", ref.ID), zap.Error(err))
		return nil, "", fmt.Errorf("failed to read attachment: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(ref.Name))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if idx := strings.Index(mimeType, ";"); idx > 0 {
		mimeType = mimeType[:idx]
	}

	return content, mimeType, nil
}

// URL returns a retrieval URL for display purposes
func (s *LocalAttachmentStore) URL(ctx context.Context, ref entity.AttachmentRef) (string, error) {
	path, err := s.resolve(ref.ID, ref.Name)
	if err != nil {
		return "", err
	}
	return "file://" + path, nil
}

// resolve maps an attachment reference to its path under the base dir,
// rejecting anything that escapes it
func (s *LocalAttachmentStore) resolve(id, name string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("attachment id is required")
	}

	filename := id + filepath.Ext(name)
	path := filepath.Join(s.baseDir, filename)

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("invalid base directory: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid attachment path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(os.PathSeparator)) {
		return "", fmt.Errorf("attachment path escapes storage directory")
	}

	return absPath, nil
}

// Verify interface compliance
var _ port.AttachmentStore = (*LocalAttachmentStore)(nil)
