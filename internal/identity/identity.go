// Package identity derives the deterministic, idempotent job ID.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// idLen is the number of hash bytes kept; 16 bytes (32 hex chars) keeps the
// collision probability negligible at any realistic submission volume.
const idLen = 16

// ComputeJobID hashes the canonical string action:entityID:version and
// returns a fixed-length hex identifier. Identical inputs always yield the
// identical output across restarts and hosts; this is the sole dedup key
// for the queue store.
func ComputeJobID(action, entityID string, version int) string {
	canonical := action + ":" + entityID + ":" + strconv.Itoa(version)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:idLen])
}
