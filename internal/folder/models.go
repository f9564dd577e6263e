package folder

import (
	"time"

	"github.com/google/uuid"
)

// RootName is the reserved name of every owner's top-level folder.
const RootName = "root"

// Folder is a node in an owner's folder tree.
type Folder struct {
	ID        uuid.UUID  `json:"id"`
	OwnerID   uuid.UUID  `json:"owner_id"`
	ParentID  *uuid.UUID `json:"parent_id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsRoot reports whether f is its owner's root folder.
func (f Folder) IsRoot() bool {
	return f.ParentID == nil && f.Name == RootName
}

// FileRef is the part of a file record the tree operations need.
type FileRef struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	ObjectKey   string    `json:"-"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentType string    `json:"content_type"`
}

// Listing is a folder together with its direct children and files, as read
// from the store in one round trip.
type Listing struct {
	Folder   Folder    `json:"folder"`
	Children []Folder  `json:"children"`
	Files    []FileRef `json:"files"`
}

// Node is one entry of a subtree closure.
type Node struct {
	Folder Folder    `json:"folder"`
	Files  []FileRef `json:"files"`
}

// CascadeResult summarizes a cascading delete.
type CascadeResult struct {
	FoldersDeleted int `json:"folders_deleted"`
	FilesDeleted   int `json:"files_deleted"`
}
