package canonical

import (
	"strconv"
	"unicode/utf16"
)

// Fold53 is the fast, non-cryptographic fingerprint hash: two 32-bit seeds
// mixed per UTF-16 code unit, cross-folded into a 53-bit integer and rendered
// as lowercase hex. It compacts a finding's stable fields before the
// cryptographic identity digest is taken over them.
//
// The bit operations are frozen: identifiers already issued hash through this
// exact sequence, so any change here silently re-keys every finding. Treat
// the constants and the fold as a wire format, not as a tunable hash.
func Fold53(s string) string {
	return Fold53Seeded(s, 0)
}

// Fold53Seeded is Fold53 with an explicit seed mixed into both lanes.
func Fold53Seeded(s string, seed uint32) string {
	h1 := uint32(0xdeadbeef) ^ seed
	h2 := uint32(0x41c6ce57) ^ seed

	for _, ch := range utf16.Encode([]rune(s)) {
		h1 = (h1 ^ uint32(ch)) * 2654435761
		h2 = (h2 ^ uint32(ch)) * 1597334677
	}

	h1 = (h1^(h1>>16))*2246822507 ^ (h2^(h2>>13))*3266489909
	h2 = (h2^(h2>>16))*2246822507 ^ (h1^(h1>>13))*3266489909

	folded := uint64(h2&2097151)<<32 + uint64(h1)

	return strconv.FormatUint(folded, 16)
}
