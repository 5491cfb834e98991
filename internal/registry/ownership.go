package registry

import (
	"crypto/sha256"
	"crypto/subtle"
)

// ownershipProofDomain separates this hash from any other use of
// SHA-256 in the module, so a leaked proof hash from one purpose can
// never be replayed against another.
const ownershipProofDomain = "picobridge/ownership-proof/v1"

// hashOwnershipSecret produces the value stored on a TenantRecord. The
// raw secret itself is never persisted (spec §4.3, §7 P10).
func hashOwnershipSecret(secret string) []byte {
	h := sha256.New()
	h.Write([]byte(ownershipProofDomain))
	h.Write([]byte{0})
	h.Write([]byte(secret))
	sum := h.Sum(nil)
	return sum
}

// checkOwnership reports whether secret matches the record's stored
// proof hash, in constant time.
func checkOwnership(record TenantRecord, secret string) bool {
	if len(record.OwnershipProofHash) == 0 {
		return false
	}
	got := hashOwnershipSecret(secret)
	return subtle.ConstantTimeCompare(got, record.OwnershipProofHash) == 1
}
