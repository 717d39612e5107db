package stream

import "io"

// MaxListRecords caps the number of records ListAll returns.
const MaxListRecords = 10000

// Index is the durable metadata store: a forward table keyed by path and a
// reverse table keyed by content hash, kept consistent inside the store's
// own transactions. No caller can mutate one table without the other.
// Implementations must be safe for concurrent use.
type Index interface {
	// Upsert atomically writes the record under its path and points the
	// reverse table at it. A stale reverse mapping left behind by the
	// path's previous hash is cleared in the same transaction.
	Upsert(m *FileMetadata) error

	// GetByPath returns the record for an absolute path, or nil when the
	// path is not indexed.
	GetByPath(path string) (*FileMetadata, error)

	// GetByHash resolves a hash through the reverse table to its current
	// owner. Returns nil when the hash is unknown or its record is gone.
	GetByHash(hash Hash) (*FileMetadata, error)

	// Remove deletes the record and, when the reverse table still points
	// at this path, its hash mapping. Removing an unknown path is a
	// no-op.
	Remove(path string) error

	// ListAll returns up to MaxListRecords records in the store's own
	// iteration order, which need not reflect insertion order.
	ListAll() ([]*FileMetadata, error)

	// Compact reclaims space. The caller must ensure there are no
	// concurrent writers for the duration.
	Compact() error

	// Backup streams a consistent snapshot of the store to w.
	Backup(w io.Writer) error

	// Close releases the store.
	Close() error
}
