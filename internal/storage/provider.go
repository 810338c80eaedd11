package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when a file or folder does not exist.
var ErrNotFound = errors.New("remote file not found")

// RemoteFile is a file or folder as reported by the storage provider.
// It is read fresh on every scan and never persisted as-is.
type RemoteFile struct {
	ID       string
	Name     string
	MimeType string
	Size     int64
	ParentID string
	IsFolder bool
}

// IsVideo reports whether the file carries a video mime type.
func (f RemoteFile) IsVideo() bool {
	return !f.IsFolder && strings.HasPrefix(f.MimeType, "video/")
}

// Provider is the contract the scanner uses to read and clean up remote storage.
type Provider interface {
	// ListChildren returns the direct children of a folder.
	ListChildren(ctx context.Context, folderID string) ([]RemoteFile, error)
	// ListChildrenRecursive returns every descendant of a folder, folders included.
	ListChildrenRecursive(ctx context.Context, folderID string) ([]RemoteFile, error)
	// ListChildrenRecursiveSkipMissing is ListChildrenRecursive without
	// failing on subfolders that vanish mid-walk.
	ListChildrenRecursiveSkipMissing(ctx context.Context, folderID string) ([]RemoteFile, error)
	// GetFile returns (nil, nil) when the file no longer exists.
	GetFile(ctx context.Context, fileID string) (*RemoteFile, error)
	DeleteFile(ctx context.Context, fileID string) error
	RenameFile(ctx context.Context, fileID, name string) error
}
