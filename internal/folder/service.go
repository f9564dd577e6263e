package folder

import (
	"context"
	"errors"
	"strings"

	"github.com/abduss/treedrive/internal/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type folderStore interface {
	listingReader
	GetByID(ctx context.Context, id uuid.UUID) (Folder, error)
	FindRoot(ctx context.Context, ownerID uuid.UUID) (Folder, error)
	FindByNameAndParent(ctx context.Context, ownerID uuid.UUID, name string, parentID uuid.UUID) (Folder, error)
	Create(ctx context.Context, ownerID uuid.UUID, name string, parentID *uuid.UUID) (Folder, error)
	UpdateParent(ctx context.Context, id, parentID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	LockTree(ctx context.Context, ownerID uuid.UUID) error
}

// fileRecords removes file metadata rows. Deleting a missing row is not an error.
type fileRecords interface {
	Delete(ctx context.Context, id uuid.UUID) error
}

// blobRemover removes file contents. Deleting a missing key is not an error.
type blobRemover interface {
	Delete(ctx context.Context, key string) error
}

type transactor interface {
	ExecTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service implements folder tree operations for a single owner at a time.
type Service struct {
	folders folderStore
	files   fileRecords
	blobs   blobRemover
	tx      transactor
	log     *zap.Logger
	tracer  trace.Tracer
}

// NewService constructs a folder service.
func NewService(folders folderStore, files fileRecords, blobs blobRemover, tx transactor, log *zap.Logger) *Service {
	return &Service{
		folders: folders,
		files:   files,
		blobs:   blobs,
		tx:      tx,
		log:     log,
		tracer:  otel.Tracer("github.com/abduss/treedrive/internal/folder"),
	}
}

// EnsureRoot returns the owner's root folder, creating it when missing.
func (s *Service) EnsureRoot(ctx context.Context, ownerID uuid.UUID) (Folder, error) {
	root, err := s.folders.FindRoot(ctx, ownerID)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Folder{}, storageErr("find root", uuid.Nil, uuid.Nil, err)
	}

	root, err = s.folders.Create(ctx, ownerID, RootName, nil)
	if errors.Is(err, ErrNameTaken) {
		// created concurrently
		root, err = s.folders.FindRoot(ctx, ownerID)
	}
	if err != nil {
		return Folder{}, storageErr("create root", uuid.Nil, uuid.Nil, err)
	}

	s.log.Info("root folder provisioned", zap.Stringer("owner_id", ownerID), zap.Stringer("folder_id", root.ID))
	return root, nil
}

// RootFolderID returns the id of the owner's root folder, creating it when missing.
func (s *Service) RootFolderID(ctx context.Context, ownerID uuid.UUID) (uuid.UUID, error) {
	root, err := s.EnsureRoot(ctx, ownerID)
	if err != nil {
		return uuid.Nil, err
	}
	return root.ID, nil
}

// CreateFolder adds a child folder under parentID.
func (s *Service) CreateFolder(ctx context.Context, ownerID uuid.UUID, name string, parentID uuid.UUID) (Folder, error) {
	created, err := s.createFolder(ctx, ownerID, name, parentID)
	s.observe("create", err)
	return created, err
}

func (s *Service) createFolder(ctx context.Context, ownerID uuid.UUID, name string, parentID uuid.UUID) (Folder, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return Folder{}, err
	}

	if _, err := s.owned(ctx, ownerID, parentID, ErrParentNotFound); err != nil {
		return Folder{}, err
	}

	_, err := s.folders.FindByNameAndParent(ctx, ownerID, name, parentID)
	switch {
	case err == nil:
		return Folder{}, ErrNameTaken
	case !errors.Is(err, ErrNotFound):
		return Folder{}, storageErr("find sibling", parentID, uuid.Nil, err)
	}

	created, err := s.folders.Create(ctx, ownerID, name, &parentID)
	if err != nil {
		return Folder{}, storageErr("create folder", parentID, uuid.Nil, err)
	}

	s.log.Info("folder created",
		zap.Stringer("owner_id", ownerID),
		zap.Stringer("folder_id", created.ID),
		zap.Stringer("parent_id", parentID),
		zap.String("name", created.Name),
	)
	return created, nil
}

// GetFolder returns an owned folder with its direct children and files.
func (s *Service) GetFolder(ctx context.Context, ownerID, folderID uuid.UUID) (Listing, error) {
	listing, err := s.folders.Listing(ctx, folderID)
	if errors.Is(err, ErrNotFound) || (err == nil && listing.Folder.OwnerID != ownerID) {
		return Listing{}, ErrNotFound
	}
	if err != nil {
		return Listing{}, storageErr("list folder", folderID, uuid.Nil, err)
	}
	return listing, nil
}

// GetRoot returns the owner's root folder listing.
func (s *Service) GetRoot(ctx context.Context, ownerID uuid.UUID) (Listing, error) {
	root, err := s.EnsureRoot(ctx, ownerID)
	if err != nil {
		return Listing{}, err
	}
	return s.GetFolder(ctx, ownerID, root.ID)
}

// Get returns an owned folder record.
func (s *Service) Get(ctx context.Context, ownerID, folderID uuid.UUID) (Folder, error) {
	return s.owned(ctx, ownerID, folderID, ErrNotFound)
}

// CollectSubtree returns folderID and all of its descendants, each with the
// files it directly contains. The first node is folderID itself. An unknown
// folderID yields an empty result and no error.
func (s *Service) CollectSubtree(ctx context.Context, folderID uuid.UUID) ([]Node, error) {
	ctx, span := s.tracer.Start(ctx, "folder.CollectSubtree",
		trace.WithAttributes(attribute.String("folder.id", folderID.String())))
	defer span.End()

	nodes, err := collectSubtree(ctx, s.folders, folderID)
	if err != nil {
		s.fail(span, "collect subtree failed", err, zap.Stringer("folder_id", folderID))
		return nil, err
	}
	span.SetAttributes(attribute.Int("subtree.folders", len(nodes)))
	return nodes, nil
}

// Subtree is CollectSubtree restricted to folders the owner can see.
func (s *Service) Subtree(ctx context.Context, ownerID, folderID uuid.UUID) ([]Node, error) {
	if _, err := s.owned(ctx, ownerID, folderID, ErrNotFound); err != nil {
		return nil, err
	}
	return s.CollectSubtree(ctx, folderID)
}

// Move loads both folders and moves folderID under targetID.
func (s *Service) Move(ctx context.Context, ownerID, folderID, targetID uuid.UUID) (Folder, error) {
	folder, err := s.owned(ctx, ownerID, folderID, ErrNotFound)
	if err != nil {
		s.observe("move", err)
		return Folder{}, err
	}
	if folder.IsRoot() {
		s.observe("move", ErrCannotMoveRoot)
		return Folder{}, ErrCannotMoveRoot
	}
	target, err := s.owned(ctx, ownerID, targetID, ErrTargetNotFound)
	if err != nil {
		s.observe("move", err)
		return Folder{}, err
	}
	return s.MoveFolder(ctx, ownerID, folder, target)
}

// MoveFolder re-parents folder under target after checking, in order, that the
// owner holds folder, folder is not the root, the owner holds target, target is
// not already the parent, and target is outside folder's subtree.
func (s *Service) MoveFolder(ctx context.Context, ownerID uuid.UUID, folder, target Folder) (Folder, error) {
	ctx, span := s.tracer.Start(ctx, "folder.MoveFolder", trace.WithAttributes(
		attribute.String("folder.id", folder.ID.String()),
		attribute.String("target.id", target.ID.String()),
	))
	defer span.End()

	moved, err := s.moveFolder(ctx, ownerID, folder, target)
	s.observe("move", err)
	if err != nil {
		if _, rejected := AsRejection(err); !rejected {
			s.fail(span, "move folder failed", err, zap.Stringer("folder_id", folder.ID))
		}
		return Folder{}, err
	}

	s.log.Info("folder moved",
		zap.Stringer("owner_id", ownerID),
		zap.Stringer("folder_id", folder.ID),
		zap.Stringer("target_id", target.ID),
	)
	return moved, nil
}

func (s *Service) moveFolder(ctx context.Context, ownerID uuid.UUID, folder, target Folder) (Folder, error) {
	if folder.OwnerID != ownerID {
		return Folder{}, ErrNotFound
	}
	if folder.IsRoot() {
		return Folder{}, ErrCannotMoveRoot
	}
	if target.OwnerID != ownerID {
		return Folder{}, ErrTargetNotFound
	}
	if folder.ParentID != nil && *folder.ParentID == target.ID {
		return Folder{}, ErrAlreadyInTarget
	}

	err := s.tx.ExecTx(ctx, func(ctx context.Context) error {
		// serializes with other moves and deletes in this tree, so the walk
		// below sees every structural change committed before us
		if err := s.folders.LockTree(ctx, ownerID); err != nil {
			return storageErr("lock tree", folder.ID, uuid.Nil, err)
		}
		nodes, err := collectSubtree(ctx, s.folders, folder.ID)
		if err != nil {
			return err
		}
		if _, inside := subtreeIDs(nodes)[target.ID]; inside || target.ID == folder.ID {
			return ErrCyclicMove
		}
		return storageErr("update parent", folder.ID, uuid.Nil, s.folders.UpdateParent(ctx, folder.ID, target.ID))
	})
	if err != nil {
		return Folder{}, err
	}

	parentID := target.ID
	folder.ParentID = &parentID
	return folder, nil
}

// Delete loads folderID and removes it with everything below it.
func (s *Service) Delete(ctx context.Context, ownerID, folderID uuid.UUID) (CascadeResult, error) {
	folder, err := s.owned(ctx, ownerID, folderID, ErrNotFound)
	if err != nil {
		s.observe("delete", err)
		return CascadeResult{}, err
	}
	return s.DeleteFolderCascade(ctx, ownerID, folder)
}

// DeleteFolderCascade removes folder, every descendant folder, and every file
// inside them. Records are deleted in one transaction, deepest folders first
// and each folder's files before the folder. Blobs are removed after commit;
// a blob that cannot be removed is logged and counted but does not fail the
// call. Calling it again for an already deleted folder returns an empty result.
func (s *Service) DeleteFolderCascade(ctx context.Context, ownerID uuid.UUID, folder Folder) (CascadeResult, error) {
	ctx, span := s.tracer.Start(ctx, "folder.DeleteFolderCascade",
		trace.WithAttributes(attribute.String("folder.id", folder.ID.String())))
	defer span.End()

	result, err := s.deleteFolderCascade(ctx, ownerID, folder)
	s.observe("delete", err)
	if err != nil {
		if _, rejected := AsRejection(err); !rejected {
			s.fail(span, "cascade delete failed", err, zap.Stringer("folder_id", folder.ID))
		}
		return CascadeResult{}, err
	}

	span.SetAttributes(
		attribute.Int("cascade.folders", result.FoldersDeleted),
		attribute.Int("cascade.files", result.FilesDeleted),
	)
	s.log.Info("folder deleted",
		zap.Stringer("owner_id", ownerID),
		zap.Stringer("folder_id", folder.ID),
		zap.Int("folders_deleted", result.FoldersDeleted),
		zap.Int("files_deleted", result.FilesDeleted),
	)
	return result, nil
}

func (s *Service) deleteFolderCascade(ctx context.Context, ownerID uuid.UUID, folder Folder) (CascadeResult, error) {
	if folder.OwnerID != ownerID {
		return CascadeResult{}, ErrNotFound
	}
	if folder.IsRoot() {
		return CascadeResult{}, ErrCannotDeleteRoot
	}

	var (
		result  CascadeResult
		removed []FileRef
	)
	err := s.tx.ExecTx(ctx, func(ctx context.Context) error {
		result, removed = CascadeResult{}, nil

		if err := s.folders.LockTree(ctx, ownerID); err != nil {
			return storageErr("lock tree", folder.ID, uuid.Nil, err)
		}
		nodes, err := collectSubtree(ctx, s.folders, folder.ID)
		if err != nil {
			return err
		}

		// reverse pre-order puts every folder after all of its descendants
		for i := len(nodes) - 1; i >= 0; i-- {
			node := nodes[i]
			for _, f := range node.Files {
				if err := s.files.Delete(ctx, f.ID); err != nil {
					return storageErr("delete file", node.Folder.ID, f.ID, err)
				}
				removed = append(removed, f)
			}
			if err := s.folders.Delete(ctx, node.Folder.ID); err != nil {
				return storageErr("delete folder", node.Folder.ID, uuid.Nil, err)
			}
			result.FoldersDeleted++
		}
		return nil
	})
	if err != nil {
		return CascadeResult{}, err
	}

	result.FilesDeleted = len(removed)
	metrics.CascadeDeleted.WithLabelValues("folder").Add(float64(result.FoldersDeleted))
	metrics.CascadeDeleted.WithLabelValues("file").Add(float64(result.FilesDeleted))

	s.removeBlobs(context.WithoutCancel(ctx), removed)
	return result, nil
}

func (s *Service) removeBlobs(ctx context.Context, files []FileRef) {
	for _, f := range files {
		if err := s.blobs.Delete(ctx, f.ObjectKey); err != nil {
			metrics.BlobDeleteFailures.Inc()
			s.log.Warn("blob left behind after cascade delete",
				zap.Stringer("file_id", f.ID),
				zap.String("object_key", f.ObjectKey),
				zap.Error(err),
			)
		}
	}
}

// owned loads id and returns notFound when it is absent or belongs to someone else.
func (s *Service) owned(ctx context.Context, ownerID, id uuid.UUID, notFound *RejectedError) (Folder, error) {
	f, err := s.folders.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) || (err == nil && f.OwnerID != ownerID) {
		return Folder{}, notFound
	}
	if err != nil {
		return Folder{}, storageErr("get folder", id, uuid.Nil, err)
	}
	return f, nil
}

func (s *Service) observe(op string, err error) {
	result := "ok"
	if rej, ok := AsRejection(err); ok {
		result = string(rej.Reason)
	} else if err != nil {
		result = "error"
	}
	metrics.FolderOperations.WithLabelValues(op, result).Inc()
}

func (s *Service) fail(span trace.Span, msg string, err error, fields ...zap.Field) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var corrupt *CorruptTreeError
	if errors.As(err, &corrupt) {
		fields = append(fields, zap.Stringer("revisited_folder_id", corrupt.FolderID))
	}
	s.log.Error(msg, append(fields, zap.Error(err))...)
}
