package folder

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

const folderColumns = `id, owner_id, parent_id, name, created_at, updated_at`

// Repository provides access to folder records. Calls made with a context
// carrying a transaction run inside it.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new folder repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFolder(row scanner) (Folder, error) {
	var f Folder
	err := row.Scan(&f.ID, &f.OwnerID, &f.ParentID, &f.Name, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func (r *Repository) getOne(ctx context.Context, op, query string, args ...any) (Folder, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	f, err := scanFolder(storage.Executor(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Folder{}, ErrNotFound
		}
		return Folder{}, fmt.Errorf("%s: %w", op, err)
	}
	return f, nil
}

// GetByID fetches a folder by id regardless of owner.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Folder, error) {
	return r.getOne(ctx, "get folder",
		`SELECT `+folderColumns+` FROM folders WHERE id = $1;`, id)
}

// FindRoot fetches the owner's root folder.
func (r *Repository) FindRoot(ctx context.Context, ownerID uuid.UUID) (Folder, error) {
	return r.getOne(ctx, "find root folder",
		`SELECT `+folderColumns+` FROM folders WHERE owner_id = $1 AND parent_id IS NULL;`, ownerID)
}

// FindByNameAndParent fetches the owner's folder called name directly under parentID.
func (r *Repository) FindByNameAndParent(ctx context.Context, ownerID uuid.UUID, name string, parentID uuid.UUID) (Folder, error) {
	return r.getOne(ctx, "find folder by name",
		`SELECT `+folderColumns+` FROM folders WHERE owner_id = $1 AND parent_id = $2 AND name = $3;`,
		ownerID, parentID, name)
}

// Listing reads a folder, its direct children and its files in one round trip.
func (r *Repository) Listing(ctx context.Context, id uuid.UUID) (Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	batch := &pgx.Batch{}
	batch.Queue(`SELECT ` + folderColumns + ` FROM folders WHERE id = $1;`, id)
	batch.Queue(`SELECT `+folderColumns+` FROM folders WHERE parent_id = $1 ORDER BY name, id;`, id)
	batch.Queue(`
SELECT id, name, object_key, size_bytes, content_type
FROM files
WHERE folder_id = $1
ORDER BY name, id;`, id)

	results := storage.Executor(ctx, r.pool).SendBatch(ctx, batch)
	defer results.Close()

	folder, err := scanFolder(results.QueryRow())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, fmt.Errorf("list folder: %w", err)
	}

	rows, err := results.Query()
	if err != nil {
		return Listing{}, fmt.Errorf("list child folders: %w", err)
	}
	children, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Folder, error) {
		return scanFolder(row)
	})
	if err != nil {
		return Listing{}, fmt.Errorf("scan child folders: %w", err)
	}

	rows, err = results.Query()
	if err != nil {
		return Listing{}, fmt.Errorf("list folder files: %w", err)
	}
	files, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (FileRef, error) {
		var f FileRef
		err := row.Scan(&f.ID, &f.Name, &f.ObjectKey, &f.SizeBytes, &f.ContentType)
		return f, err
	})
	if err != nil {
		return Listing{}, fmt.Errorf("scan folder files: %w", err)
	}

	return Listing{Folder: folder, Children: children, Files: files}, nil
}

// Create inserts a folder. A nil parentID creates the owner's root.
func (r *Repository) Create(ctx context.Context, ownerID uuid.UUID, name string, parentID *uuid.UUID) (Folder, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO folders (owner_id, parent_id, name)
VALUES ($1, $2, $3)
RETURNING ` + folderColumns + `;`

	f, err := scanFolder(storage.Executor(ctx, r.pool).QueryRow(ctx, query, ownerID, parentID, name))
	if err != nil {
		switch {
		case storage.IsUniqueViolation(err):
			return Folder{}, ErrNameTaken
		case storage.IsForeignKeyViolation(err):
			return Folder{}, ErrParentNotFound
		}
		return Folder{}, fmt.Errorf("create folder: %w", err)
	}
	return f, nil
}

// UpdateParent re-links a folder under parentID.
func (r *Repository) UpdateParent(ctx context.Context, id, parentID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := storage.Executor(ctx, r.pool).Exec(ctx,
		`UPDATE folders SET parent_id = $2, updated_at = NOW() WHERE id = $1;`, id, parentID)
	if err != nil {
		switch {
		case storage.IsUniqueViolation(err):
			return ErrNameTaken
		case storage.IsForeignKeyViolation(err):
			return ErrTargetNotFound
		}
		return fmt.Errorf("update folder parent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LockTree row-locks the owner's root folder for the rest of the current
// transaction. Moves and cascade deletes take it before walking the tree, so
// concurrent structural changes to one owner's tree run one after another.
func (r *Repository) LockTree(ctx context.Context, ownerID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	if _, err := storage.Executor(ctx, r.pool).Exec(ctx,
		`SELECT id FROM folders WHERE owner_id = $1 AND parent_id IS NULL FOR UPDATE;`, ownerID); err != nil {
		return fmt.Errorf("lock folder tree: %w", err)
	}
	return nil
}

// Delete removes a single folder row. Removing a missing folder is a no-op.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	if _, err := storage.Executor(ctx, r.pool).Exec(ctx, `DELETE FROM folders WHERE id = $1;`, id); err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	return nil
}
