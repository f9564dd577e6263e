package file

import (
	"time"

	"github.com/google/uuid"
)

// Metadata represents stored information about an uploaded file.
type Metadata struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	FolderID    uuid.UUID `json:"folder_id"`
	Name        string    `json:"name"`
	ObjectKey   string    `json:"-"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
