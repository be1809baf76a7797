// Package engine implements the per-jail security policy store and the
// exec/unlink enforcement hooks.
//
// An [Engine] owns one entry per jail. Each entry holds two fingerprint-keyed
// indices over rule records: the live index consulted by enforcement, and a
// staging index that accumulates a replacement ruleset until
// [Engine.CommitStaging] swaps it in atomically. Rules come in two enforced
// families: Integriforce (file-integrity checks at exec and unlink) and PaX
// (per-binary exploit-mitigation toggles). A third family, extended, is
// reserved and rejected at ingestion.
package engine

import (
	"crypto/sha1" //nolint:gosec // sha1 is a supported rule digest, not used for new security decisions
	"crypto/sha256"
	"hash"
	"slices"

	"github.com/hardenedlabs/secadm/internal/fsx"
)

// Path and mount-point bounds, matching the host limits rules are checked
// against.
const (
	// MaxPathLen bounds rule paths (exclusive).
	MaxPathLen = 1024

	// MNameLen is the fixed width of the mount-point region in fingerprint
	// keys and wire records. Longer mount points are truncated, shorter
	// ones zero-padded, so equivalent inputs always produce equal keys.
	MNameLen = 88
)

// Kind tags the rule family.
type Kind uint32

// Rule families.
const (
	KindIntegriforce Kind = iota
	KindPaX
	KindExtended
)

func (k Kind) String() string {
	switch k {
	case KindIntegriforce:
		return "integriforce"
	case KindPaX:
		return "pax"
	case KindExtended:
		return "extended"
	default:
		return "unknown"
	}
}

// HashKind selects the digest algorithm of an Integriforce rule.
type HashKind uint8

// Supported digests.
const (
	HashSHA1 HashKind = iota
	HashSHA256
)

// Digest lengths in bytes.
const (
	SHA1DigestLen   = 20
	SHA256DigestLen = 32
)

// DigestLen returns the expected digest length in bytes, or 0 for an
// unknown kind.
func (h HashKind) DigestLen() int {
	switch h {
	case HashSHA1:
		return SHA1DigestLen
	case HashSHA256:
		return SHA256DigestLen
	default:
		return 0
	}
}

// New returns a fresh hash state for the kind. Callers must have validated
// the kind; unknown kinds return nil.
func (h HashKind) New() hash.Hash {
	switch h {
	case HashSHA1:
		return sha1.New() //nolint:gosec // see package note on sha1 rules
	case HashSHA256:
		return sha256.New()
	default:
		return nil
	}
}

func (h HashKind) String() string {
	switch h {
	case HashSHA1:
		return "sha1"
	case HashSHA256:
		return "sha256"
	default:
		return "unknown"
	}
}

// PaXFlags is a bitmask of exploit-mitigation toggles. Each feature has an
// explicit enable and disable bit; a rule that sets neither bit for a
// feature leaves the process default untouched.
type PaXFlags uint32

// PaX feature toggle bits.
const (
	ASLREnable PaXFlags = 1 << iota
	ASLRDisable
	SegvguardEnable
	SegvguardDisable

	paxFlagsAll = ASLREnable | ASLRDisable | SegvguardEnable | SegvguardDisable
)

// valid reports whether the mask names at least one toggle, no unknown
// bits, and no contradictory enable+disable pair.
func (f PaXFlags) valid() bool {
	if f == 0 || f&^paxFlagsAll != 0 {
		return false
	}

	if f&ASLREnable != 0 && f&ASLRDisable != 0 {
		return false
	}

	if f&SegvguardEnable != 0 && f&SegvguardDisable != 0 {
		return false
	}

	return true
}

// Data is the kind-tagged payload of a rule record. Exactly one concrete
// type exists per rule family; the variant cannot desynchronize from its
// tag because the tag is derived from the type.
//
// Data values are immutable once built by ingestion. The interface is
// sealed: only this package constructs implementations.
type Data interface {
	// Kind returns the family tag.
	Kind() Kind

	// Path returns the rule's configured path.
	Path() string

	// Ident returns the resolved (mount point, file id) pair.
	Ident() fsx.FileIdent

	clone() Data
}

// Integriforce carries the payload of a file-integrity rule.
type Integriforce struct {
	FilePath string
	File     fsx.FileIdent
	HashKind HashKind
	Hash     []byte
}

func (d Integriforce) Kind() Kind           { return KindIntegriforce }
func (d Integriforce) Path() string         { return d.FilePath }
func (d Integriforce) Ident() fsx.FileIdent { return d.File }

func (d Integriforce) clone() Data {
	d.Hash = slices.Clone(d.Hash)
	return d
}

// PaX carries the payload of an exploit-mitigation rule.
type PaX struct {
	FilePath string
	File     fsx.FileIdent
	Flags    PaXFlags
}

func (d PaX) Kind() Kind           { return KindPaX }
func (d PaX) Path() string         { return d.FilePath }
func (d PaX) Ident() fsx.FileIdent { return d.File }
func (d PaX) clone() Data          { return d }

// Extended is the reserved third family. Its definition is carried for the
// wire format, but ingestion rejects it with [ErrUnsupported].
type Extended struct {
	FilePath string
	File     fsx.FileIdent
}

func (d Extended) Kind() Kind           { return KindExtended }
func (d Extended) Path() string         { return d.FilePath }
func (d Extended) Ident() fsx.FileIdent { return d.File }
func (d Extended) clone() Data          { return d }

// Rule is one record in a jail's index. Records are created by ingestion,
// owned by exactly one index, and immutable after insertion except for the
// Active flag.
type Rule struct {
	// ID is monotonic within a jail, numbered separately for the live and
	// staging indices.
	ID     uint32
	JailID uint32

	// Active gates enforcement. Inactive rules are ignored by the hooks
	// but still occupy their (mount point, file id) slot.
	Active bool

	// Fingerprint is the index key: the FNV-1a hash of
	// (jail id, kind, mount point, file id). See [Fingerprint].
	Fingerprint uint32

	Data Data
}

// Kind returns the rule family tag.
func (r Rule) Kind() Kind {
	return r.Data.Kind()
}

// clone returns a copy safe to use outside the index locks.
func (r Rule) clone() Rule {
	r.Data = r.Data.clone()
	return r
}

// Spec describes a rule before ingestion resolves its path. Specs arrive
// from the control channel or from ruleset files; [Engine.AddRule] turns
// them into records.
type Spec interface {
	specKind() Kind
	specPath() string
}

// IntegriforceSpec requests a file-integrity rule.
type IntegriforceSpec struct {
	Path     string
	HashKind HashKind
	Hash     []byte
}

func (s IntegriforceSpec) specKind() Kind   { return KindIntegriforce }
func (s IntegriforceSpec) specPath() string { return s.Path }

// PaXSpec requests an exploit-mitigation rule.
type PaXSpec struct {
	Path  string
	Flags PaXFlags
}

func (s PaXSpec) specKind() Kind   { return KindPaX }
func (s PaXSpec) specPath() string { return s.Path }

// ExtendedSpec requests a rule of the reserved family. Ingestion rejects
// it; the type exists so the wire codec can round-trip such records.
type ExtendedSpec struct {
	Path string
}

func (s ExtendedSpec) specKind() Kind   { return KindExtended }
func (s ExtendedSpec) specPath() string { return s.Path }
