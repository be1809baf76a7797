package fsx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Identification errors.
var (
	// ErrNotAbsolute is returned for paths that do not start with '/'.
	// Rules identify files in the live namespace; relative paths have no
	// stable meaning there.
	ErrNotAbsolute = errors.New("fsx: path is not absolute")

	// ErrNotRegular is returned when the path resolves to something other
	// than a regular file.
	ErrNotRegular = errors.New("fsx: not a regular file")
)

// FileIdent identifies a file independently of its path: the mounted-on
// path of the filesystem containing it, plus the per-filesystem file id
// (inode number).
type FileIdent struct {
	MountPoint string
	FileID     uint64
}

// Identify resolves path to its [FileIdent].
//
// The path must be absolute and resolve (following symlinks) to a regular
// file. The mount point is found by walking parent directories until the
// device id changes: the last ancestor still on the file's device is the
// mounted-on path.
//
// Errors from the underlying filesystem are wrapped with %w, so callers
// can still match them with [errors.Is] and distinguish resolution failures
// from type mismatches ([ErrNotRegular]).
func Identify(fs FS, path string) (FileIdent, error) {
	if !filepath.IsAbs(path) {
		return FileIdent{}, ErrNotAbsolute
	}

	path = filepath.Clean(path)

	fi, err := fs.Stat(path)
	if err != nil {
		return FileIdent{}, fmt.Errorf("identify %s: %w", path, err)
	}

	if !fi.Mode().IsRegular() {
		return FileIdent{}, fmt.Errorf("identify %s: %w", path, ErrNotRegular)
	}

	dev, ino, err := devIno(fi)
	if err != nil {
		return FileIdent{}, fmt.Errorf("identify %s: %w", path, err)
	}

	mount, err := mountPoint(fs, filepath.Dir(path), dev)
	if err != nil {
		return FileIdent{}, fmt.Errorf("identify %s: %w", path, err)
	}

	return FileIdent{MountPoint: mount, FileID: ino}, nil
}

// mountPoint walks upward from dir until the parent directory lives on a
// different device. dir itself is assumed to be on dev.
func mountPoint(fs FS, dir string, dev uint64) (string, error) {
	for dir != "/" {
		parent := filepath.Dir(dir)

		fi, err := fs.Stat(parent)
		if err != nil {
			return "", fmt.Errorf("mount point walk at %s: %w", parent, err)
		}

		pdev, _, err := devIno(fi)
		if err != nil {
			return "", fmt.Errorf("mount point walk at %s: %w", parent, err)
		}

		if pdev != dev {
			return dir, nil
		}

		dir = parent
	}

	return "/", nil
}

// devIno extracts the device and inode numbers from stat results.
func devIno(fi os.FileInfo) (dev, ino uint64, err error) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return 0, 0, errors.New("fsx: stat carries no system data")
	}

	return uint64(st.Dev), st.Ino, nil //nolint:unconvert // Dev is int32 on some platforms
}
