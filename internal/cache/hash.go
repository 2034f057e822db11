// Package cache memoizes parsed project files for cross-file resolution.
// Entries are keyed by path and validated against a SHA-256 content hash.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent computes a SHA-256 hash of the given content
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
