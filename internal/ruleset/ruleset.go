// Package ruleset reads ruleset configuration files and translates them
// into wire records for submission over the control channel.
//
// Files are HuJSON (JSON with comments and trailing commas):
//
//	{
//	  "secadm": {
//	    "integriforce": [
//	      {"path": "/bin/ls", "hash": "sha256:<hex>"},
//	    ],
//	    "pax": [
//	      {"path": "/usr/bin/example", "aslr": false, "segvguard": true},
//	    ],
//	  },
//	}
//
// Parsing is strict: a malformed entry fails the whole file and the error
// names the entry's position. Nothing is skipped silently.
package ruleset

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/hardenedlabs/secadm/internal/engine"
	"github.com/hardenedlabs/secadm/internal/fsx"
	"github.com/hardenedlabs/secadm/internal/wire"
)

// Parse errors.
var (
	ErrParse    = errors.New("ruleset: cannot parse file")
	ErrBadEntry = errors.New("ruleset: invalid entry")
)

// document mirrors the file layout.
type document struct {
	Secadm struct {
		Integriforce []integriforceEntry `json:"integriforce"`
		PaX          []paxEntry          `json:"pax"`
	} `json:"secadm"`
}

type integriforceEntry struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

type paxEntry struct {
	Path      string `json:"path"`
	ASLR      *bool  `json:"aslr"`
	Segvguard *bool  `json:"segvguard"`
}

// Load reads and parses the ruleset file at path.
func Load(filesystem fsx.FS, path string) ([]wire.Rule, error) {
	raw, err := filesystem.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}

	return Parse(raw)
}

// Parse translates file contents into wire records. Record ids and jail
// ids are left zero; the daemon assigns both.
func Parse(raw []byte) ([]wire.Rule, error) {
	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var doc document

	decoder := json.NewDecoder(strings.NewReader(string(standardized)))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	rules := make([]wire.Rule, 0, len(doc.Secadm.Integriforce)+len(doc.Secadm.PaX))

	for i, entry := range doc.Secadm.Integriforce {
		rule, err := integriforceRule(entry)
		if err != nil {
			return nil, fmt.Errorf("integriforce entry %d: %w", i, err)
		}

		rules = append(rules, rule)
	}

	for i, entry := range doc.Secadm.PaX {
		rule, err := paxRule(entry)
		if err != nil {
			return nil, fmt.Errorf("pax entry %d: %w", i, err)
		}

		rules = append(rules, rule)
	}

	return rules, nil
}

func integriforceRule(entry integriforceEntry) (wire.Rule, error) {
	if err := checkPath(entry.Path); err != nil {
		return wire.Rule{}, err
	}

	kind, digest, err := ParseDigest(entry.Hash)
	if err != nil {
		return wire.Rule{}, err
	}

	return wire.Rule{
		Kind:     engine.KindIntegriforce,
		Active:   true,
		Path:     entry.Path,
		HashKind: kind,
		Hash:     digest,
	}, nil
}

func paxRule(entry paxEntry) (wire.Rule, error) {
	if err := checkPath(entry.Path); err != nil {
		return wire.Rule{}, err
	}

	var flags engine.PaXFlags

	if entry.ASLR != nil {
		if *entry.ASLR {
			flags |= engine.ASLREnable
		} else {
			flags |= engine.ASLRDisable
		}
	}

	if entry.Segvguard != nil {
		if *entry.Segvguard {
			flags |= engine.SegvguardEnable
		} else {
			flags |= engine.SegvguardDisable
		}
	}

	if flags == 0 {
		return wire.Rule{}, fmt.Errorf("%w: %s: no features set", ErrBadEntry, entry.Path)
	}

	return wire.Rule{
		Kind:   engine.KindPaX,
		Active: true,
		Path:   entry.Path,
		Flags:  flags,
	}, nil
}

// ParseDigest decodes an "algo:hex" digest reference with an exact-length
// check for the algorithm.
func ParseDigest(s string) (engine.HashKind, []byte, error) {
	algo, hexDigest, found := strings.Cut(s, ":")
	if !found {
		return 0, nil, fmt.Errorf("%w: digest %q must be algo:hex", ErrBadEntry, s)
	}

	var kind engine.HashKind

	switch algo {
	case "sha1":
		kind = engine.HashSHA1
	case "sha256":
		kind = engine.HashSHA256
	default:
		return 0, nil, fmt.Errorf("%w: unknown digest algorithm %q", ErrBadEntry, algo)
	}

	digest, err := hex.DecodeString(hexDigest)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: digest %q: %v", ErrBadEntry, s, err)
	}

	if len(digest) != kind.DigestLen() {
		return 0, nil, fmt.Errorf("%w: %s digest must be %d bytes, got %d",
			ErrBadEntry, algo, kind.DigestLen(), len(digest))
	}

	return kind, digest, nil
}

// FormatDigest renders a digest the way [ParseDigest] reads it.
func FormatDigest(kind engine.HashKind, digest []byte) string {
	return fmt.Sprintf("%s:%s", kind, hex.EncodeToString(digest))
}

func checkPath(path string) error {
	if len(path) == 0 || len(path) >= engine.MaxPathLen {
		return fmt.Errorf("%w: path length %d out of bounds", ErrBadEntry, len(path))
	}

	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: path %q is not absolute", ErrBadEntry, path)
	}

	return nil
}
