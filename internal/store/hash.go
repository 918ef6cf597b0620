package store

import (
	"crypto/sha256"
	"fmt"
)

// ContentHash returns the SHA-256 hex digest of file bytes, the content
// fingerprint spec.md's Data Model names: equal fingerprints mean the
// extracted graph for that file is still valid.
func ContentHash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}
