package file

import "errors"

var (
	// ErrFileNotFound signals that the file could not be located.
	ErrFileNotFound = errors.New("file not found")
	// ErrFolderNotFound indicates the destination folder is absent or not owned by the caller.
	ErrFolderNotFound = errors.New("folder not found")
	// ErrAlreadyInFolder rejects a move to the folder the file is already in.
	ErrAlreadyInFolder = errors.New("file is already in target folder")
	// ErrFileTooLarge signals that the upload exceeds configured limits.
	ErrFileTooLarge = errors.New("file too large")
	// ErrNoFiles signals an upload request without any file parts.
	ErrNoFiles = errors.New("no files provided")
)
