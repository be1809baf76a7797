package fsx

import (
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	return path
}

func TestChaosZeroConfigPassesThrough(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, "payload")
	chaos := NewChaos(NewReal(), ChaosConfig{}, 1)

	data, err := chaos.ReadFile(path)
	if err != nil {
		t.Fatalf("read through idle chaos: %v", err)
	}

	if string(data) != "payload" {
		t.Errorf("read %q, want %q", data, "payload")
	}

	ident, err := Identify(chaos, path)
	if err != nil {
		t.Fatalf("identify through idle chaos: %v", err)
	}

	if ident.FileID == 0 {
		t.Error("file id is zero")
	}
}

func TestChaosInjectsAndMarksErrors(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, "payload")

	tests := []struct {
		name string
		cfg  ChaosConfig
		op   func(fs FS) error
	}{
		{
			"open failure",
			ChaosConfig{OpenFailRate: 1.0},
			func(fs FS) error { _, err := fs.Open(path); return err },
		},
		{
			"read failure",
			ChaosConfig{ReadFailRate: 1.0},
			func(fs FS) error { _, err := fs.ReadFile(path); return err },
		},
		{
			"stat failure",
			ChaosConfig{StatFailRate: 1.0},
			func(fs FS) error { _, err := fs.Stat(path); return err },
		},
		{
			"digest under read faults",
			ChaosConfig{ReadFailRate: 1.0},
			func(fs FS) error { _, err := DigestFile(fs, path, sha256.New()); return err },
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			chaos := NewChaos(NewReal(), testCase.cfg, 42)

			err := testCase.op(chaos)
			if err == nil {
				t.Fatal("operation succeeded under full fault injection")
			}

			if !IsInjected(err) {
				t.Errorf("error %v is not marked as injected", err)
			}
		})
	}
}

func TestIsInjectedIgnoresRealErrors(t *testing.T) {
	t.Parallel()

	_, err := NewReal().Open(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatal("open of missing file succeeded")
	}

	if IsInjected(err) {
		t.Error("real error reported as injected")
	}

	if IsInjected(nil) {
		t.Error("nil error reported as injected")
	}

	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing-file error = %v, want ErrNotExist", err)
	}
}

func TestDigestFile(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, "digest me")

	sum, err := DigestFile(NewReal(), path, sha256.New())
	if err != nil {
		t.Fatalf("digest: %v", err)
	}

	want := sha256.Sum256([]byte("digest me"))
	if string(sum) != string(want[:]) {
		t.Errorf("digest mismatch")
	}
}
