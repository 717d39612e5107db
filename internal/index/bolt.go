package index

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"streamd/internal/stream"
)

var (
	filesBucket     = []byte("files")
	hashIndexBucket = []byte("hash_index")
)

// BoltIndex is the durable Index implementation: a single-file bbolt
// database holding the forward bucket (path to record) and the reverse
// bucket (hash to path). All writes touching both buckets run in one
// transaction, so readers never observe the tables out of step.
type BoltIndex struct {
	db     *bolt.DB
	path   string
	logger stream.Logger
}

// NewBoltIndex opens or creates the database at path, creating parent
// directories and both buckets as needed. Opening is idempotent.
func NewBoltIndex(path string, logger stream.Logger) (*BoltIndex, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating index directory: %v", stream.ErrStorage, err)
	}

	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", stream.ErrStorage, path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(filesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(hashIndexBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: preparing buckets: %v", stream.ErrStorage, err)
	}

	return &BoltIndex{db: db, path: path, logger: logger}, nil
}

// Upsert writes the record under its path and points the reverse bucket at
// it. When the path previously held different content, the old hash's
// mapping is dropped in the same transaction if it still points here, so a
// reverse lookup always resolves to the path's current hash.
func (i *BoltIndex) Upsert(m *stream.FileMetadata) error {
	encoded, err := encodeRecord(m)
	if err != nil {
		return fmt.Errorf("%w: encoding record for %s: %v", stream.ErrStorage, m.Path, err)
	}

	err = i.db.Update(func(tx *bolt.Tx) error {
		files := tx.Bucket(filesBucket)
		hashes := tx.Bucket(hashIndexBucket)

		if prev := files.Get([]byte(m.Path)); prev != nil {
			if old, err := decodeRecord(prev); err == nil && old.Hash != m.Hash {
				if owner := hashes.Get([]byte(old.Hash)); string(owner) == m.Path {
					if err := hashes.Delete([]byte(old.Hash)); err != nil {
						return err
					}
				}
			}
		}

		if err := files.Put([]byte(m.Path), encoded); err != nil {
			return err
		}
		return hashes.Put([]byte(m.Hash), []byte(m.Path))
	})
	if err != nil {
		return fmt.Errorf("%w: upserting %s: %v", stream.ErrStorage, m.Path, err)
	}
	return nil
}

// GetByPath returns the record stored under path, or nil when absent.
func (i *BoltIndex) GetByPath(path string) (*stream.FileMetadata, error) {
	var meta *stream.FileMetadata
	err := i.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(filesBucket).Get([]byte(path))
		if data == nil {
			return nil
		}
		m, err := decodeRecord(data)
		if err != nil {
			return fmt.Errorf("decoding record for %s: %w", path, err)
		}
		meta = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stream.ErrStorage, err)
	}
	return meta, nil
}

// GetByHash resolves hash through the reverse bucket. A hash nobody maps,
// or one whose mapped record is gone, returns nil.
func (i *BoltIndex) GetByHash(hash stream.Hash) (*stream.FileMetadata, error) {
	var meta *stream.FileMetadata
	err := i.db.View(func(tx *bolt.Tx) error {
		path := tx.Bucket(hashIndexBucket).Get([]byte(hash))
		if path == nil {
			return nil
		}
		data := tx.Bucket(filesBucket).Get(path)
		if data == nil {
			return nil
		}
		m, err := decodeRecord(data)
		if err != nil {
			return fmt.Errorf("decoding record for %s: %w", path, err)
		}
		meta = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stream.ErrStorage, err)
	}
	return meta, nil
}

// Remove deletes the record and, when the reverse bucket still points at
// this path, its hash mapping. Unknown paths are a no-op.
func (i *BoltIndex) Remove(path string) error {
	err := i.db.Update(func(tx *bolt.Tx) error {
		files := tx.Bucket(filesBucket)
		hashes := tx.Bucket(hashIndexBucket)

		data := files.Get([]byte(path))
		if data == nil {
			return nil
		}
		if m, err := decodeRecord(data); err == nil {
			if owner := hashes.Get([]byte(m.Hash)); string(owner) == path {
				if err := hashes.Delete([]byte(m.Hash)); err != nil {
					return err
				}
			}
		}
		return files.Delete([]byte(path))
	})
	if err != nil {
		return fmt.Errorf("%w: removing %s: %v", stream.ErrStorage, path, err)
	}
	return nil
}

// ListAll returns up to MaxListRecords records in key order.
func (i *BoltIndex) ListAll() ([]*stream.FileMetadata, error) {
	var records []*stream.FileMetadata
	err := i.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(filesBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(records) >= stream.MaxListRecords {
				break
			}
			m, err := decodeRecord(v)
			if err != nil {
				return fmt.Errorf("decoding record for %s: %w", k, err)
			}
			records = append(records, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stream.ErrStorage, err)
	}
	return records, nil
}

// Compact rewrites the database into a fresh file and swaps it into place,
// reclaiming space left by deleted records. The caller must ensure nothing
// else is writing for the duration.
func (i *BoltIndex) Compact() error {
	tmpPath := i.path + ".compact"

	dst, err := bolt.Open(tmpPath, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("%w: opening compaction target: %v", stream.ErrStorage, err)
	}
	if err := bolt.Compact(dst, i.db, 0); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: compacting: %v", stream.ErrStorage, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing compaction target: %v", stream.ErrStorage, err)
	}

	if err := i.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing index for compaction: %v", stream.ErrStorage, err)
	}
	if err := os.Rename(tmpPath, i.path); err != nil {
		return fmt.Errorf("%w: swapping compacted index: %v", stream.ErrStorage, err)
	}

	db, err := bolt.Open(i.path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("%w: reopening compacted index: %v", stream.ErrStorage, err)
	}
	i.db = db
	i.logger.Info("index compacted", "path", i.path)
	return nil
}

// Backup streams a consistent snapshot of the database to w. The snapshot
// is taken inside a read transaction, so concurrent writers are safe.
func (i *BoltIndex) Backup(w io.Writer) error {
	err := i.db.View(func(tx *bolt.Tx) error {
		_, err := tx.WriteTo(w)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: writing snapshot: %v", stream.ErrStorage, err)
	}
	return nil
}

// Close releases the database file.
func (i *BoltIndex) Close() error {
	if err := i.db.Close(); err != nil {
		return fmt.Errorf("%w: closing index: %v", stream.ErrStorage, err)
	}
	return nil
}

// Compile-time check that BoltIndex implements the Index interface.
var _ stream.Index = (*BoltIndex)(nil)
