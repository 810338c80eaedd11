package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"strings"

	"golang.org/x/net/webdav"
)

// FSProvider exposes a webdav.FileSystem as a storage Provider. File IDs are
// slash-separated absolute paths inside the file system.
type FSProvider struct {
	fs      webdav.FileSystem
	workers int
	log     *slog.Logger
}

// NewFSProvider wraps any webdav.FileSystem (a mounted drive via webdav.Dir,
// or webdav.NewMemFS in tests).
func NewFSProvider(fsys webdav.FileSystem, workers int) *FSProvider {
	if workers < 1 {
		workers = 1
	}
	return &FSProvider{
		fs:      fsys,
		workers: workers,
		log:     slog.With("component", "storage"),
	}
}

// NewDirProvider serves the local directory tree rooted at dir.
func NewDirProvider(dir string, workers int) *FSProvider {
	return NewFSProvider(webdav.Dir(dir), workers)
}

// ListChildren returns the direct children of folderID.
func (p *FSProvider) ListChildren(ctx context.Context, folderID string) ([]RemoteFile, error) {
	folderID = cleanID(folderID)

	f, err := p.fs.OpenFile(ctx, folderID, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", folderID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open folder: %w", err)
	}
	defer f.Close()

	infos, err := f.Readdir(-1)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}

	files := make([]RemoteFile, 0, len(infos))
	for _, info := range infos {
		files = append(files, toRemoteFile(path.Join(folderID, info.Name()), info))
	}
	return files, nil
}

// ListChildrenRecursive returns every descendant of folderID.
func (p *FSProvider) ListChildrenRecursive(ctx context.Context, folderID string) ([]RemoteFile, error) {
	return Walk(ctx, p, cleanID(folderID), p.workers)
}

// ListChildrenRecursiveSkipMissing is ListChildrenRecursive, except that
// subfolders which disappear while the walk is running are logged and left
// out instead of failing the whole listing.
func (p *FSProvider) ListChildrenRecursiveSkipMissing(ctx context.Context, folderID string) ([]RemoteFile, error) {
	return WalkSkipping(ctx, p, cleanID(folderID), p.workers, func(id string, err error) bool {
		if !errors.Is(err, ErrNotFound) {
			return false
		}
		p.log.Warn("Skipping folder missing from storage", "folder", id)
		return true
	})
}

// GetFile returns (nil, nil) if fileID does not exist.
func (p *FSProvider) GetFile(ctx context.Context, fileID string) (*RemoteFile, error) {
	fileID = cleanID(fileID)

	info, err := p.fs.Stat(ctx, fileID)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	f := toRemoteFile(fileID, info)
	return &f, nil
}

// DeleteFile removes fileID. Deleting a missing file reports ErrNotFound.
func (p *FSProvider) DeleteFile(ctx context.Context, fileID string) error {
	fileID = cleanID(fileID)
	if fileID == "/" {
		return fmt.Errorf("refusing to delete storage root")
	}

	if _, err := p.fs.Stat(ctx, fileID); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", fileID, ErrNotFound)
		}
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if err := p.fs.RemoveAll(ctx, fileID); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	p.log.Info("Deleted remote file", "id", fileID)
	return nil
}

// RenameFile gives fileID a new name inside the same parent folder.
func (p *FSProvider) RenameFile(ctx context.Context, fileID, name string) error {
	fileID = cleanID(fileID)
	if name == "" || strings.ContainsRune(name, '/') {
		return fmt.Errorf("invalid file name %q", name)
	}

	target := path.Join(path.Dir(fileID), name)
	if err := p.fs.Rename(ctx, fileID, target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", fileID, ErrNotFound)
		}
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

func toRemoteFile(id string, info fs.FileInfo) RemoteFile {
	f := RemoteFile{
		ID:       id,
		Name:     info.Name(),
		ParentID: path.Dir(id),
		IsFolder: info.IsDir(),
	}
	if !f.IsFolder {
		f.Size = info.Size()
		f.MimeType = mimeType(f.Name)
	}
	return f
}

// Video containers the mime package does not always know about.
var videoMimeTypes = map[string]string{
	".mkv":  "video/x-matroska",
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".webm": "video/webm",
	".ts":   "video/mp2t",
	".m2ts": "video/mp2t",
	".flv":  "video/x-flv",
}

func mimeType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if t, ok := videoMimeTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func cleanID(id string) string {
	id = path.Clean("/" + id)
	return id
}
