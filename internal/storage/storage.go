// Package storage provides the persistent workspace storage that survives VM
// teardown. Project files are copied in with verification; a partial copy is
// a hard failure, never a partial success.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"vortex/internal/constants"
	"vortex/internal/errors"
	"vortex/internal/logger"
	"vortex/internal/xdg"
)

// Manager owns the on-disk storage root for workspace file trees
type Manager struct {
	root string
}

// New creates a storage manager rooted under the XDG data directory
func New() (*Manager, error) {
	dataDir, err := xdg.DataDir()
	if err != nil {
		return nil, errors.Wrap(errors.ErrFileSystem, "failed to resolve data directory", err)
	}
	return NewAt(filepath.Join(dataDir, "workspaces"))
}

// NewAt creates a storage manager rooted at an explicit directory
func NewAt(root string) (*Manager, error) {
	if err := os.MkdirAll(root, constants.DirPermissions); err != nil {
		return nil, errors.Wrap(errors.ErrFileSystem, "failed to create storage root", err)
	}
	return &Manager{root: root}, nil
}

// Root returns the storage root directory
func (m *Manager) Root() string {
	return m.root
}

// WorkspaceDir returns the storage directory for a workspace ID
func (m *Manager) WorkspaceDir(workspaceID string) string {
	return filepath.Join(m.root, workspaceID)
}

// CopyStats summarizes a verified copy
type CopyStats struct {
	Files int
	Bytes int64
}

// CopyIn copies a project tree into workspace storage and verifies the result
// by file count and byte count. The operation is bounded by ctx; on any
// failure or mismatch the destination is removed so no partial tree lingers.
func (m *Manager) CopyIn(ctx context.Context, workspaceID, sourcePath string) (CopyStats, error) {
	dest := m.WorkspaceDir(workspaceID)

	written, err := copyTree(ctx, sourcePath, dest)
	if err != nil {
		os.RemoveAll(dest)
		if ctx.Err() != nil {
			return CopyStats{}, errors.Timeout("workspace storage copy")
		}
		return CopyStats{}, errors.ImportCopyFailed(err)
	}

	expected, err := measureTree(sourcePath)
	if err != nil {
		os.RemoveAll(dest)
		return CopyStats{}, errors.ImportCopyFailed(err)
	}
	if written != expected {
		os.RemoveAll(dest)
		return CopyStats{}, errors.ImportIncomplete(
			"copy verification mismatch: copied " + written.describe() + ", expected " + expected.describe())
	}

	logger.WithFields(logger.Fields{
		"workspace": workspaceID,
		"files":     written.Files,
		"bytes":     written.Bytes,
	}).Info("Workspace storage populated")

	return written, nil
}

// Delete removes a workspace's storage directory
func (m *Manager) Delete(workspaceID string) error {
	if err := os.RemoveAll(m.WorkspaceDir(workspaceID)); err != nil {
		return errors.Wrap(errors.ErrFileSystem, "failed to delete workspace storage", err)
	}
	return nil
}

func (s CopyStats) describe() string {
	return fmt.Sprintf("%d files / %d bytes", s.Files, s.Bytes)
}

func copyTree(ctx context.Context, src, dst string) (CopyStats, error) {
	var stats CopyStats
	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		// Symlinks are skipped rather than followed; a link escaping the
		// source tree must not end up in workspace storage.
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			return os.MkdirAll(target, constants.DirPermissions)
		}

		n, err := copyFile(path, target, info.Mode())
		if err != nil {
			return err
		}
		stats.Files++
		stats.Bytes += n
		return nil
	})
	return stats, err
}

// measureTree walks the source again after the copy so verification catches
// files that changed or vanished mid-copy.
func measureTree(src string) (CopyStats, error) {
	var stats CopyStats
	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() || info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		stats.Files++
		stats.Bytes += info.Size()
		return nil
	})
	return stats, err
}

func copyFile(src, dst string, mode os.FileMode) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}
