package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hardenedlabs/secadm/internal/engine"
)

// Record encoding errors.
var (
	// ErrBadKind rejects records whose kind tag is not a known family.
	ErrBadKind = errors.New("wire: unknown rule kind")

	// ErrBadPath rejects out-of-bounds path lengths.
	ErrBadPath = errors.New("wire: invalid path length")

	// ErrBadHash rejects unknown hash kinds and mismatched digest lengths.
	ErrBadHash = errors.New("wire: invalid hash")

	// ErrTrailingData means a record decoded cleanly but bytes remained.
	ErrTrailingData = errors.New("wire: trailing data after record")
)

// ruleHeaderSize is kind u32 + rule id u32 + jail id u32 + active u8.
const ruleHeaderSize = 13

// identSize is the fixed tail of every body: mount point + file id u64.
const identSize = engine.MNameLen + 8

// Rule is the on-wire representation of one rule record: the fixed header
// followed by a kind-dependent body. Fields that do not belong to the
// record's kind are zero.
type Rule struct {
	Kind   engine.Kind
	ID     uint32
	JailID uint32
	Active bool

	Path       string
	MountPoint string
	FileID     uint64

	// Integriforce only.
	HashKind engine.HashKind
	Hash     []byte

	// PaX only.
	Flags engine.PaXFlags
}

// EncodeRule serializes one record.
func EncodeRule(r Rule) ([]byte, error) {
	if len(r.Path) == 0 || len(r.Path) >= engine.MaxPathLen {
		return nil, fmt.Errorf("path length %d: %w", len(r.Path), ErrBadPath)
	}

	buf := make([]byte, 0, ruleHeaderSize+7+len(r.Path)+len(r.Hash)+identSize)
	buf = appendRuleHeader(buf, r)

	switch r.Kind {
	case engine.KindIntegriforce:
		if r.HashKind.DigestLen() == 0 || len(r.Hash) != r.HashKind.DigestLen() {
			return nil, fmt.Errorf("kind %d digest %d bytes: %w", r.HashKind, len(r.Hash), ErrBadHash)
		}

		buf = append(buf, byte(r.HashKind))
		buf = appendPath(buf, r.Path)
		buf = append(buf, r.Hash...)
		buf = appendIdent(buf, r.MountPoint, r.FileID)

	case engine.KindPaX:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(r.Flags))
		buf = appendPath(buf, r.Path)
		buf = appendIdent(buf, r.MountPoint, r.FileID)

	case engine.KindExtended:
		buf = appendPath(buf, r.Path)
		buf = appendIdent(buf, r.MountPoint, r.FileID)

	default:
		return nil, fmt.Errorf("kind %d: %w", r.Kind, ErrBadKind)
	}

	return buf, nil
}

// DecodeRule deserializes exactly one record.
func DecodeRule(b []byte) (Rule, error) {
	r, rest, err := decodeRule(b)
	if err != nil {
		return Rule{}, err
	}

	if len(rest) != 0 {
		return Rule{}, fmt.Errorf("%d bytes: %w", len(rest), ErrTrailingData)
	}

	return r, nil
}

// EncodeRuleset serializes a rule count followed by that many records.
// This flattens the original linked-list submission for a stream transport.
func EncodeRuleset(rules []Rule) ([]byte, error) {
	buf := binary.LittleEndian.AppendUint32(nil, uint32(len(rules)))

	for i, r := range rules {
		rec, err := EncodeRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}

		buf = append(buf, rec...)
	}

	return buf, nil
}

// DecodeRuleset deserializes a ruleset payload.
func DecodeRuleset(b []byte) ([]Rule, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("ruleset header: %w", ErrTruncated)
	}

	count := binary.LittleEndian.Uint32(b[0:4])
	b = b[4:]

	// Each record is at least a header plus an ident; a count beyond that
	// cannot be backed by the payload.
	if uint64(count)*(ruleHeaderSize+identSize) > uint64(len(b))+ruleHeaderSize+identSize {
		return nil, fmt.Errorf("ruleset of %d rules in %d bytes: %w", count, len(b), ErrTruncated)
	}

	rules := make([]Rule, 0, count)

	for i := uint32(0); i < count; i++ {
		r, rest, err := decodeRule(b)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}

		rules = append(rules, r)
		b = rest
	}

	if len(b) != 0 {
		return nil, fmt.Errorf("%d bytes: %w", len(b), ErrTrailingData)
	}

	return rules, nil
}

// EncodeRuleID serializes the id payload used by del, enable, disable, and
// the retrieval commands.
func EncodeRuleID(id uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, id)
}

// DecodeRuleID deserializes an id payload.
func DecodeRuleID(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("rule id payload %d bytes: %w", len(b), ErrTruncated)
	}

	return binary.LittleEndian.Uint32(b), nil
}

// EncodeCounts serializes the get_num_rules reply payload.
func EncodeCounts(c engine.Counts) []byte {
	buf := make([]byte, 0, 16)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(c.Total))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(c.Integriforce))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(c.PaX))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(c.Extended))

	return buf
}

// DecodeCounts deserializes a get_num_rules reply payload.
func DecodeCounts(b []byte) (engine.Counts, error) {
	if len(b) != 16 {
		return engine.Counts{}, fmt.Errorf("counts payload %d bytes: %w", len(b), ErrTruncated)
	}

	return engine.Counts{
		Total:        int(binary.LittleEndian.Uint32(b[0:4])),
		Integriforce: int(binary.LittleEndian.Uint32(b[4:8])),
		PaX:          int(binary.LittleEndian.Uint32(b[8:12])),
		Extended:     int(binary.LittleEndian.Uint32(b[12:16])),
	}, nil
}

// EncodeRuleHeader serializes only the fixed header, the get_rule reply.
func EncodeRuleHeader(r Rule) []byte {
	return appendRuleHeader(make([]byte, 0, ruleHeaderSize), r)
}

// DecodeRuleHeader deserializes a get_rule reply into a partial record.
func DecodeRuleHeader(b []byte) (Rule, error) {
	if len(b) != ruleHeaderSize {
		return Rule{}, fmt.Errorf("rule header %d bytes: %w", len(b), ErrTruncated)
	}

	r, _ := decodeRuleHeader(b)

	if r.Kind > engine.KindExtended {
		return Rule{}, fmt.Errorf("kind %d: %w", r.Kind, ErrBadKind)
	}

	return r, nil
}

// EncodeRuleData serializes the kind-dependent fixed part of a record: the
// get_rule_data reply. Path and hash travel via their own commands.
func EncodeRuleData(r Rule) ([]byte, error) {
	switch r.Kind {
	case engine.KindIntegriforce:
		buf := make([]byte, 0, 1+identSize)
		buf = append(buf, byte(r.HashKind))

		return appendIdent(buf, r.MountPoint, r.FileID), nil

	case engine.KindPaX:
		buf := binary.LittleEndian.AppendUint32(make([]byte, 0, 4+identSize), uint32(r.Flags))

		return appendIdent(buf, r.MountPoint, r.FileID), nil

	case engine.KindExtended:
		return appendIdent(make([]byte, 0, identSize), r.MountPoint, r.FileID), nil

	default:
		return nil, fmt.Errorf("kind %d: %w", r.Kind, ErrBadKind)
	}
}

// DecodeRuleData merges a get_rule_data reply into r, which must already
// carry the kind from the header.
func DecodeRuleData(r *Rule, b []byte) error {
	switch r.Kind {
	case engine.KindIntegriforce:
		if len(b) != 1+identSize {
			return fmt.Errorf("integriforce data %d bytes: %w", len(b), ErrTruncated)
		}

		r.HashKind = engine.HashKind(b[0])
		if r.HashKind.DigestLen() == 0 {
			return fmt.Errorf("hash kind %d: %w", r.HashKind, ErrBadHash)
		}

		r.MountPoint, r.FileID = decodeIdent(b[1:])

	case engine.KindPaX:
		if len(b) != 4+identSize {
			return fmt.Errorf("pax data %d bytes: %w", len(b), ErrTruncated)
		}

		r.Flags = engine.PaXFlags(binary.LittleEndian.Uint32(b[0:4]))
		r.MountPoint, r.FileID = decodeIdent(b[4:])

	case engine.KindExtended:
		if len(b) != identSize {
			return fmt.Errorf("extended data %d bytes: %w", len(b), ErrTruncated)
		}

		r.MountPoint, r.FileID = decodeIdent(b)

	default:
		return fmt.Errorf("kind %d: %w", r.Kind, ErrBadKind)
	}

	return nil
}

func appendRuleHeader(buf []byte, r Rule) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.Kind))
	buf = binary.LittleEndian.AppendUint32(buf, r.ID)
	buf = binary.LittleEndian.AppendUint32(buf, r.JailID)

	active := byte(0)
	if r.Active {
		active = 1
	}

	return append(buf, active)
}

func decodeRuleHeader(b []byte) (Rule, []byte) {
	r := Rule{
		Kind:   engine.Kind(binary.LittleEndian.Uint32(b[0:4])),
		ID:     binary.LittleEndian.Uint32(b[4:8]),
		JailID: binary.LittleEndian.Uint32(b[8:12]),
		Active: b[12] != 0,
	}

	return r, b[ruleHeaderSize:]
}

func appendPath(buf []byte, path string) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(path)))

	return append(buf, path...)
}

func appendIdent(buf []byte, mount string, fileID uint64) []byte {
	var mnt [engine.MNameLen]byte

	copy(mnt[:], mount)

	buf = append(buf, mnt[:]...)

	return binary.LittleEndian.AppendUint64(buf, fileID)
}

func decodeIdent(b []byte) (string, uint64) {
	mount := string(trimZero(b[:engine.MNameLen]))
	fileID := binary.LittleEndian.Uint64(b[engine.MNameLen : engine.MNameLen+8])

	return mount, fileID
}

func trimZero(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}

	return b
}

// decodeRule deserializes one record from the front of b and returns the
// remainder.
func decodeRule(b []byte) (Rule, []byte, error) {
	if len(b) < ruleHeaderSize {
		return Rule{}, nil, fmt.Errorf("rule header: %w", ErrTruncated)
	}

	r, b := decodeRuleHeader(b)

	switch r.Kind {
	case engine.KindIntegriforce:
		if len(b) < 1 {
			return Rule{}, nil, fmt.Errorf("hash kind: %w", ErrTruncated)
		}

		r.HashKind = engine.HashKind(b[0])
		b = b[1:]

		digestLen := r.HashKind.DigestLen()
		if digestLen == 0 {
			return Rule{}, nil, fmt.Errorf("hash kind %d: %w", r.HashKind, ErrBadHash)
		}

		path, rest, err := decodePath(b)
		if err != nil {
			return Rule{}, nil, err
		}

		r.Path = path
		b = rest

		if len(b) < digestLen+identSize {
			return Rule{}, nil, fmt.Errorf("integriforce body: %w", ErrTruncated)
		}

		r.Hash = append([]byte(nil), b[:digestLen]...)
		r.MountPoint, r.FileID = decodeIdent(b[digestLen:])
		b = b[digestLen+identSize:]

	case engine.KindPaX:
		if len(b) < 4 {
			return Rule{}, nil, fmt.Errorf("pax flags: %w", ErrTruncated)
		}

		r.Flags = engine.PaXFlags(binary.LittleEndian.Uint32(b[0:4]))
		b = b[4:]

		path, rest, err := decodePath(b)
		if err != nil {
			return Rule{}, nil, err
		}

		r.Path = path
		b = rest

		if len(b) < identSize {
			return Rule{}, nil, fmt.Errorf("pax body: %w", ErrTruncated)
		}

		r.MountPoint, r.FileID = decodeIdent(b)
		b = b[identSize:]

	case engine.KindExtended:
		path, rest, err := decodePath(b)
		if err != nil {
			return Rule{}, nil, err
		}

		r.Path = path
		b = rest

		if len(b) < identSize {
			return Rule{}, nil, fmt.Errorf("extended body: %w", ErrTruncated)
		}

		r.MountPoint, r.FileID = decodeIdent(b)
		b = b[identSize:]

	default:
		return Rule{}, nil, fmt.Errorf("kind %d: %w", r.Kind, ErrBadKind)
	}

	return r, b, nil
}

func decodePath(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, fmt.Errorf("path length: %w", ErrTruncated)
	}

	pathLen := int(binary.LittleEndian.Uint16(b[0:2]))
	b = b[2:]

	if pathLen == 0 || pathLen >= engine.MaxPathLen {
		return "", nil, fmt.Errorf("path length %d: %w", pathLen, ErrBadPath)
	}

	if len(b) < pathLen {
		return "", nil, fmt.Errorf("path bytes: %w", ErrTruncated)
	}

	return string(b[:pathLen]), b[pathLen:], nil
}
