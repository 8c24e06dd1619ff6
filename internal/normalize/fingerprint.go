package normalize

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives the identity hash of a title. It hashes the
// comparison form, so titles that differ only in casing, punctuation,
// or outlet branding collapse to the same fingerprint. The hash is
// content-addressing, not a security boundary.
func Fingerprint(title string) string {
	sum := sha256.Sum256([]byte(CompareKey(title)))
	return hex.EncodeToString(sum[:])
}
