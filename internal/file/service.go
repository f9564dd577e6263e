package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/abduss/treedrive/internal/folder"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxFileSize = 100 * 1024 * 1024 // 100MB
)

type metadataStore interface {
	Create(ctx context.Context, meta Metadata) (Metadata, error)
	Get(ctx context.Context, ownerID, fileID uuid.UUID) (Metadata, error)
	UpdateFolder(ctx context.Context, fileID, folderID uuid.UUID) error
	Delete(ctx context.Context, fileID uuid.UUID) error
}

type folderLookup interface {
	Get(ctx context.Context, ownerID, folderID uuid.UUID) (folder.Folder, error)
}

// BlobStore holds file contents addressed by object key. Deleting a missing
// key is not an error.
type BlobStore interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Service manages file lifecycle operations.
type Service struct {
	repo        metadataStore
	folders     folderLookup
	blobs       BlobStore
	maxFileSize int64
	log         *zap.Logger
}

// NewService constructs a file service. A non-positive maxFileSize selects the default.
func NewService(repo metadataStore, folders folderLookup, blobs BlobStore, maxFileSize int64, log *zap.Logger) *Service {
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}
	return &Service{
		repo:        repo,
		folders:     folders,
		blobs:       blobs,
		maxFileSize: maxFileSize,
		log:         log,
	}
}

// Upload stores every part in folderID. Either all files are stored or none.
func (s *Service) Upload(ctx context.Context, ownerID, folderID uuid.UUID, headers []*multipart.FileHeader) ([]Metadata, error) {
	if len(headers) == 0 {
		return nil, ErrNoFiles
	}
	for _, h := range headers {
		if h == nil {
			return nil, ErrNoFiles
		}
		if h.Size > s.maxFileSize {
			return nil, ErrFileTooLarge
		}
	}

	if _, err := s.folders.Get(ctx, ownerID, folderID); err != nil {
		return nil, translateFolderError(err)
	}

	stored := make([]Metadata, 0, len(headers))
	for _, h := range headers {
		meta, err := s.uploadOne(ctx, ownerID, folderID, h)
		if err != nil {
			s.discard(ctx, stored)
			return nil, err
		}
		stored = append(stored, meta)
	}

	s.log.Info("files uploaded",
		zap.Stringer("owner_id", ownerID),
		zap.Stringer("folder_id", folderID),
		zap.Int("count", len(stored)),
	)
	return stored, nil
}

func (s *Service) uploadOne(ctx context.Context, ownerID, folderID uuid.UUID, fileHeader *multipart.FileHeader) (Metadata, error) {
	fileID := uuid.New()
	key := objectKey(fileID, fileHeader.Filename)
	contentType := detectContentType(fileHeader)

	file, err := fileHeader.Open()
	if err != nil {
		return Metadata{}, fmt.Errorf("open upload file: %w", err)
	}
	defer file.Close()

	if err := s.blobs.Save(ctx, key, file, fileHeader.Size, contentType); err != nil {
		return Metadata{}, fmt.Errorf("store object: %w", err)
	}

	meta := Metadata{
		ID:          fileID,
		OwnerID:     ownerID,
		FolderID:    folderID,
		Name:        sanitizeFilename(fileHeader.Filename),
		ObjectKey:   key,
		SizeBytes:   fileHeader.Size,
		ContentType: contentType,
	}

	stored, err := s.repo.Create(ctx, meta)
	if err != nil {
		s.removeBlob(context.WithoutCancel(ctx), key)
		return Metadata{}, err
	}
	return stored, nil
}

func (s *Service) discard(ctx context.Context, files []Metadata) {
	ctx = context.WithoutCancel(ctx)
	for _, meta := range files {
		if err := s.repo.Delete(ctx, meta.ID); err != nil {
			s.log.Warn("failed to roll back uploaded file", zap.Stringer("file_id", meta.ID), zap.Error(err))
			continue
		}
		s.removeBlob(ctx, meta.ObjectKey)
	}
}

// Get returns metadata for an owned file.
func (s *Service) Get(ctx context.Context, ownerID, fileID uuid.UUID) (Metadata, error) {
	return s.repo.Get(ctx, ownerID, fileID)
}

// Download retrieves metadata and object reader.
func (s *Service) Download(ctx context.Context, ownerID, fileID uuid.UUID) (Metadata, io.ReadCloser, error) {
	meta, err := s.repo.Get(ctx, ownerID, fileID)
	if err != nil {
		return Metadata{}, nil, err
	}

	object, err := s.blobs.Open(ctx, meta.ObjectKey)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			s.log.Error("file contents missing", zap.Stringer("file_id", fileID), zap.String("object_key", meta.ObjectKey))
		}
		return Metadata{}, nil, fmt.Errorf("fetch object: %w", err)
	}

	return meta, object, nil
}

// Move re-links a file into another folder owned by the same user.
func (s *Service) Move(ctx context.Context, ownerID, fileID, targetFolderID uuid.UUID) (Metadata, error) {
	meta, err := s.repo.Get(ctx, ownerID, fileID)
	if err != nil {
		return Metadata{}, err
	}

	if _, err := s.folders.Get(ctx, ownerID, targetFolderID); err != nil {
		return Metadata{}, translateFolderError(err)
	}
	if meta.FolderID == targetFolderID {
		return Metadata{}, ErrAlreadyInFolder
	}

	if err := s.repo.UpdateFolder(ctx, fileID, targetFolderID); err != nil {
		return Metadata{}, err
	}

	meta.FolderID = targetFolderID
	return meta, nil
}

// Delete removes the metadata first and then the contents on a best-effort basis.
func (s *Service) Delete(ctx context.Context, ownerID, fileID uuid.UUID) error {
	meta, err := s.repo.Get(ctx, ownerID, fileID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, fileID); err != nil {
		return err
	}

	s.removeBlob(context.WithoutCancel(ctx), meta.ObjectKey)
	return nil
}

func (s *Service) removeBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.log.Warn("failed to remove object", zap.String("object_key", key), zap.Error(err))
	}
}

// objectKey is the file id plus the uploaded name's extension, case preserved.
func objectKey(id uuid.UUID, filename string) string {
	ext := filepath.Ext(filepath.Base(filename))
	if strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return id.String() + ext
}

func detectContentType(fileHeader *multipart.FileHeader) string {
	if fileHeader == nil {
		return "application/octet-stream"
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, `\`, "/")))
	if name == "" || name == "." || name == "/" {
		return "upload"
	}
	return name
}

func translateFolderError(err error) error {
	switch {
	case errors.Is(err, folder.ErrNotFound):
		return ErrFolderNotFound
	default:
		return err
	}
}
