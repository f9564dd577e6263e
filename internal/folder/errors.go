package folder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Reason identifies why a folder operation was refused.
type Reason string

const (
	ReasonNotFound         Reason = "not_found"
	ReasonTargetNotFound   Reason = "target_not_found"
	ReasonParentNotFound   Reason = "parent_not_found"
	ReasonCannotMoveRoot   Reason = "cannot_move_root"
	ReasonCannotDeleteRoot Reason = "cannot_delete_root"
	ReasonAlreadyInTarget  Reason = "already_in_target"
	ReasonCyclicMove       Reason = "cyclic_move"
	ReasonNameTaken        Reason = "name_taken"
	ReasonInvalidName      Reason = "invalid_name"
)

// RejectedError is a precondition failure. Callers compare against the
// exported sentinels with errors.Is.
type RejectedError struct {
	Reason  Reason
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

var (
	// ErrNotFound covers both absent folders and folders owned by someone else.
	ErrNotFound = &RejectedError{Reason: ReasonNotFound, Message: "folder not found"}
	// ErrTargetNotFound is ErrNotFound for the destination of a move.
	ErrTargetNotFound = &RejectedError{Reason: ReasonTargetNotFound, Message: "target folder not found"}
	// ErrParentNotFound is ErrNotFound for the parent of a new folder.
	ErrParentNotFound = &RejectedError{Reason: ReasonParentNotFound, Message: "parent folder not found"}
	// ErrCannotMoveRoot guards the owner's root folder.
	ErrCannotMoveRoot = &RejectedError{Reason: ReasonCannotMoveRoot, Message: "cannot move root folder"}
	// ErrCannotDeleteRoot guards the owner's root folder.
	ErrCannotDeleteRoot = &RejectedError{Reason: ReasonCannotDeleteRoot, Message: "cannot delete root folder"}
	// ErrAlreadyInTarget rejects a move to the folder's current parent.
	ErrAlreadyInTarget = &RejectedError{Reason: ReasonAlreadyInTarget, Message: "folder is already in target folder"}
	// ErrCyclicMove rejects a move into the folder itself or one of its descendants.
	ErrCyclicMove = &RejectedError{Reason: ReasonCyclicMove, Message: "cannot move folder into its own subtree"}
	// ErrNameTaken signals a sibling with the same name.
	ErrNameTaken = &RejectedError{Reason: ReasonNameTaken, Message: "folder already exists"}
	// ErrInvalidName signals a name that fails validation.
	ErrInvalidName = &RejectedError{Reason: ReasonInvalidName, Message: "invalid folder name"}
)

// AsRejection extracts the rejection carried by err, if any.
func AsRejection(err error) (*RejectedError, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// CorruptTreeError reports a folder reached twice while walking a subtree,
// which means the parent links contain a cycle.
type CorruptTreeError struct {
	FolderID uuid.UUID
}

func (e *CorruptTreeError) Error() string {
	return fmt.Sprintf("folder tree is corrupt: folder %s reached twice", e.FolderID)
}

// StorageError wraps a store failure with the records that were being touched.
type StorageError struct {
	Op       string
	FolderID uuid.UUID
	FileID   uuid.UUID
	Err      error
}

func (e *StorageError) Error() string {
	var b strings.Builder
	b.WriteString("folder storage: ")
	b.WriteString(e.Op)
	if e.FileID != uuid.Nil {
		b.WriteString(" file ")
		b.WriteString(e.FileID.String())
	}
	if e.FolderID != uuid.Nil {
		b.WriteString(" folder ")
		b.WriteString(e.FolderID.String())
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *StorageError) Unwrap() error { return e.Err }

// storageErr wraps err unless it already is a typed tree error.
func storageErr(op string, folderID, fileID uuid.UUID, err error) error {
	if err == nil {
		return nil
	}
	var (
		rej     *RejectedError
		corrupt *CorruptTreeError
		stored  *StorageError
	)
	if errors.As(err, &rej) || errors.As(err, &corrupt) || errors.As(err, &stored) {
		return err
	}
	return &StorageError{Op: op, FolderID: folderID, FileID: fileID, Err: err}
}
