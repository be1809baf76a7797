package fsx

import (
	"fmt"
	"hash"
	"io"
)

// DigestFile hashes the full contents of the file at path using h.
//
// The file is streamed through the [FS] interface so fault injection covers
// the read path. Any open or read error is returned; callers in the
// enforcement hooks treat every error as a denial.
func DigestFile(fs FS, path string, h hash.Hash) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("digest %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("digest %s: %w", path, err)
	}

	return h.Sum(nil), nil
}
