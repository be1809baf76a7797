package engine

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/hardenedlabs/secadm/internal/fsx"
)

// fingerprintKeySize is the packed key layout:
// jail id (4) | kind tag (4) | file id (8) | mount point (MNameLen).
const fingerprintKeySize = 4 + 4 + 8 + MNameLen

// Fingerprint computes the 32-bit FNV-1a hash of a rule's identity key.
//
// The packed layout fixes little-endian integer order and zero-pads the
// mount-point region to [MNameLen] bytes, so equal inputs produce equal
// fingerprints on every machine. The fingerprint is the primary key of a
// rule in its jail's index.
func Fingerprint(jailID uint32, kind Kind, ident fsx.FileIdent) uint32 {
	var key [fingerprintKeySize]byte

	binary.LittleEndian.PutUint32(key[0:4], jailID)
	binary.LittleEndian.PutUint32(key[4:8], uint32(kind))
	binary.LittleEndian.PutUint64(key[8:16], ident.FileID)
	copy(key[16:], ident.MountPoint) // truncates past MNameLen, rest stays zero

	h := fnv.New32a()
	_, _ = h.Write(key[:])

	return h.Sum32()
}
