package stream

import "context"

// ContentNode is the network-facing content layer: a stable identity, a
// content-addressed blob store, and ticket issuance. Implementations must
// tolerate concurrent callers; imports of identical content converge on one
// entry regardless of ordering.
type ContentNode interface {
	// ID returns the node's public identifier, stable across restarts.
	ID() string

	// RelayAddr returns the relay URL confirmed at startup, or "" when no
	// relay is known.
	RelayAddr() string

	// ImportReference makes a file's content available under its content
	// hash without copying the bytes. A missing path fails with
	// ErrFileNotFound.
	ImportReference(ctx context.Context, path string) (Hash, error)

	// CreateCollection stores a manifest over the given hashes and
	// returns the manifest's own hash. Any member that does not parse as
	// a digest fails the whole call with ErrInvalidHash.
	CreateCollection(ctx context.Context, hashes []Hash) (Hash, error)

	// GenerateTicket captures the node's identity, relay, and the current
	// time into a ticket. It performs no network or storage I/O.
	GenerateTicket(hash Hash, name string) *ShareTicket
}
