package engine

import (
	"testing"

	"github.com/hardenedlabs/secadm/internal/fsx"
)

func TestFingerprintDeterministic(t *testing.T) {
	t.Parallel()

	ident := fsx.FileIdent{MountPoint: "/", FileID: 42}

	a := Fingerprint(1, KindIntegriforce, ident)
	b := Fingerprint(1, KindIntegriforce, ident)

	if a != b {
		t.Fatalf("equal inputs produced %#x and %#x", a, b)
	}
}

func TestFingerprintDistinguishesInputs(t *testing.T) {
	t.Parallel()

	base := fsx.FileIdent{MountPoint: "/usr", FileID: 7}

	tests := []struct {
		name  string
		jail  uint32
		kind  Kind
		ident fsx.FileIdent
	}{
		{"different jail", 2, KindIntegriforce, base},
		{"different kind", 1, KindPaX, base},
		{"different file id", 1, KindIntegriforce, fsx.FileIdent{MountPoint: "/usr", FileID: 8}},
		{"different mount", 1, KindIntegriforce, fsx.FileIdent{MountPoint: "/var", FileID: 7}},
	}

	reference := Fingerprint(1, KindIntegriforce, base)

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got := Fingerprint(testCase.jail, testCase.kind, testCase.ident)
			if got == reference {
				t.Errorf("fingerprint %#x collided with reference for %s", got, testCase.name)
			}
		})
	}
}

// The packed key must zero-pad the mount-point region: a mount point and
// the same mount point with trailing NULs stripped are the same input.
func TestFingerprintMountPadding(t *testing.T) {
	t.Parallel()

	a := Fingerprint(1, KindPaX, fsx.FileIdent{MountPoint: "/usr", FileID: 9})
	b := Fingerprint(1, KindPaX, fsx.FileIdent{MountPoint: "/usr\x00\x00", FileID: 9})

	if a != b {
		t.Fatalf("padding changed the fingerprint: %#x vs %#x", a, b)
	}
}

// FNV-1a over the packed layout, written out longhand as an oracle for the
// hash/fnv implementation.
func TestFingerprintMatchesReferenceFNV(t *testing.T) {
	t.Parallel()

	const (
		offsetBasis = 2166136261
		prime       = 16777619
	)

	ident := fsx.FileIdent{MountPoint: "/mnt/data", FileID: 123456}

	var key [fingerprintKeySize]byte

	key[0] = 3 // jail id 3, little endian
	key[4] = 1 // kind tag KindPaX
	key[8] = 0x40
	key[9] = 0xe2
	key[10] = 0x01 // 123456 = 0x1e240, little endian
	copy(key[16:], ident.MountPoint)

	want := uint32(offsetBasis)
	for _, b := range key {
		want ^= uint32(b)
		want *= prime
	}

	got := Fingerprint(3, KindPaX, ident)
	if got != want {
		t.Fatalf("Fingerprint = %#x, reference FNV-1a = %#x", got, want)
	}
}
