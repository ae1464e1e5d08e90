// Package hashid derives the report-safe case identifier used throughout
// evalcore: the first 16 hex characters of SHA-256(rawCaseId). Reports
// never carry a case's raw id, only this hash, so that exported run
// artifacts don't leak potentially sensitive fixture identifiers.
package hashid

import (
	"crypto/sha256"
	"encoding/hex"
)

// Length is the fixed size, in hex characters, of a hashed case id.
const Length = 16

// HashCaseID returns the first 16 hex characters of SHA-256(rawCaseID).
// It is a pure function of rawCaseID only.
func HashCaseID(rawCaseID string) string {
	sum := sha256.Sum256([]byte(rawCaseID))
	return hex.EncodeToString(sum[:])[:Length]
}
