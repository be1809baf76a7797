package engine

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/hardenedlabs/secadm/internal/fsx"
)

// newTestEngine builds an engine over the real filesystem with logging
// discarded.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	eng := New(Options{})
	t.Cleanup(eng.Close)

	return eng
}

// writeBinary drops a file with the given contents into dir and returns
// its path together with the content's SHA-256 digest.
func writeBinary(t *testing.T, dir, name, contents string) (string, []byte) {
	t.Helper()

	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil { //nolint:gosec // test binary
		t.Fatalf("write %s: %v", path, err)
	}

	sum := sha256.Sum256([]byte(contents))

	return path, sum[:]
}

// integriforceSpec builds a SHA-256 spec for path.
func integriforceSpec(path string, digest []byte) IntegriforceSpec {
	return IntegriforceSpec{Path: path, HashKind: HashSHA256, Hash: digest}
}

// mustIdent resolves a path's identity or fails the test.
func mustIdent(t *testing.T, path string) fsx.FileIdent {
	t.Helper()

	ident, err := fsx.Identify(fsx.NewReal(), path)
	if err != nil {
		t.Fatalf("identify %s: %v", path, err)
	}

	return ident
}
