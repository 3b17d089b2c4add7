package wire

import "github.com/cespare/xxhash/v2"

// Hash64 is the stable hash used for both slot ids (over a dotted
// registration path) and type hashes (over a type tag string). A single
// hash function for both purposes keeps the registry's id and type-hash
// tables built the same way, matching the teacher's own habit of reusing
// one hashing primitive (there: sha256 truncation in internal/fabric/hub.go)
// across unrelated identifier spaces.
func Hash64(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// SlotID derives the 64-bit in-memory slot id from its fully-qualified
// dotted registration path (spec §3).
func SlotID(dottedName string) uint64 {
	return Hash64([]byte(dottedName))
}

// ToWireID truncates a 64-bit slot id to the 24-bit form carried on the
// wire (spec §3, §4.1, and the Open Questions resolution in DESIGN.md).
func ToWireID(id uint64) WireID {
	return WireID(id) & WireIDMask
}
