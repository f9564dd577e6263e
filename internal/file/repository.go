package file

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abduss/treedrive/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

// Repository provides access to file metadata storage.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new file repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts metadata for a new file.
func (r *Repository) Create(ctx context.Context, meta Metadata) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO files (id, owner_id, folder_id, name, object_key, size_bytes, content_type)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, owner_id, folder_id, name, object_key, size_bytes, content_type, created_at, updated_at;`

	row := storage.Executor(ctx, r.pool).QueryRow(ctx, query,
		meta.ID,
		meta.OwnerID,
		meta.FolderID,
		meta.Name,
		meta.ObjectKey,
		meta.SizeBytes,
		meta.ContentType,
	)

	var stored Metadata
	if err := row.Scan(&stored.ID, &stored.OwnerID, &stored.FolderID, &stored.Name, &stored.ObjectKey, &stored.SizeBytes, &stored.ContentType, &stored.CreatedAt, &stored.UpdatedAt); err != nil {
		if storage.IsForeignKeyViolation(err) {
			// folder removed between the ownership check and the insert
			return Metadata{}, ErrFolderNotFound
		}
		return Metadata{}, fmt.Errorf("create file metadata: %w", err)
	}
	return stored, nil
}

// Get fetches metadata for a single file ensuring ownership.
func (r *Repository) Get(ctx context.Context, ownerID, fileID uuid.UUID) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT id, owner_id, folder_id, name, object_key, size_bytes, content_type, created_at, updated_at
FROM files
WHERE id = $1 AND owner_id = $2;`

	var meta Metadata
	err := storage.Executor(ctx, r.pool).QueryRow(ctx, query, fileID, ownerID).Scan(
		&meta.ID,
		&meta.OwnerID,
		&meta.FolderID,
		&meta.Name,
		&meta.ObjectKey,
		&meta.SizeBytes,
		&meta.ContentType,
		&meta.CreatedAt,
		&meta.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Metadata{}, ErrFileNotFound
		}
		return Metadata{}, fmt.Errorf("get file metadata: %w", err)
	}
	return meta, nil
}

// UpdateFolder moves a file record into folderID.
func (r *Repository) UpdateFolder(ctx context.Context, fileID, folderID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `UPDATE files SET folder_id = $2, updated_at = NOW() WHERE id = $1;`

	tag, err := storage.Executor(ctx, r.pool).Exec(ctx, query, fileID, folderID)
	if err != nil {
		if storage.IsForeignKeyViolation(err) {
			return ErrFolderNotFound
		}
		return fmt.Errorf("move file metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

// Delete removes a metadata row. Removing a missing row is a no-op.
func (r *Repository) Delete(ctx context.Context, fileID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	if _, err := storage.Executor(ctx, r.pool).Exec(ctx, `DELETE FROM files WHERE id = $1;`, fileID); err != nil {
		return fmt.Errorf("delete file metadata: %w", err)
	}
	return nil
}
