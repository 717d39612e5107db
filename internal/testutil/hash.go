package testutil

import (
	"crypto/sha256"

	"streamd/internal/stream"
)

// HashOf returns the content hash of data, matching what the pipeline
// computes for a file with the same bytes.
func HashOf(data []byte) stream.Hash {
	return stream.HashFromDigest(sha256.Sum256(data))
}
