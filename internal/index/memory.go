package index

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"streamd/internal/stream"
)

// MemoryIndex is the in-memory Index implementation, used by tests and by
// one-shot commands that have no database to open. Both maps mutate under
// one lock, mirroring the durable implementation's transactions.
type MemoryIndex struct {
	mu     sync.RWMutex
	files  map[string]stream.FileMetadata
	hashes map[stream.Hash]string
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		files:  make(map[string]stream.FileMetadata),
		hashes: make(map[stream.Hash]string),
	}
}

func (i *MemoryIndex) Upsert(m *stream.FileMetadata) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if old, ok := i.files[m.Path]; ok && old.Hash != m.Hash {
		if owner, ok := i.hashes[old.Hash]; ok && owner == m.Path {
			delete(i.hashes, old.Hash)
		}
	}

	i.files[m.Path] = *m
	i.hashes[m.Hash] = m.Path
	return nil
}

func (i *MemoryIndex) GetByPath(path string) (*stream.FileMetadata, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	m, ok := i.files[path]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (i *MemoryIndex) GetByHash(hash stream.Hash) (*stream.FileMetadata, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	path, ok := i.hashes[hash]
	if !ok {
		return nil, nil
	}
	m, ok := i.files[path]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (i *MemoryIndex) Remove(path string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	m, ok := i.files[path]
	if !ok {
		return nil
	}
	if owner, ok := i.hashes[m.Hash]; ok && owner == path {
		delete(i.hashes, m.Hash)
	}
	delete(i.files, path)
	return nil
}

// ListAll returns up to MaxListRecords records sorted by path, matching
// the durable implementation's key order.
func (i *MemoryIndex) ListAll() ([]*stream.FileMetadata, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	paths := make([]string, 0, len(i.files))
	for p := range i.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	if len(paths) > stream.MaxListRecords {
		paths = paths[:stream.MaxListRecords]
	}

	records := make([]*stream.FileMetadata, 0, len(paths))
	for _, p := range paths {
		m := i.files[p]
		records = append(records, &m)
	}
	return records, nil
}

// Compact is a no-op; there is no file to rewrite.
func (i *MemoryIndex) Compact() error {
	return nil
}

// Backup writes every record in the storage encoding, sorted by path.
func (i *MemoryIndex) Backup(w io.Writer) error {
	records, err := i.ListAll()
	if err != nil {
		return err
	}
	for _, m := range records {
		encoded, err := encodeRecord(m)
		if err != nil {
			return fmt.Errorf("%w: encoding record for %s: %v", stream.ErrStorage, m.Path, err)
		}
		if _, err := w.Write(encoded); err != nil {
			return fmt.Errorf("%w: writing snapshot: %v", stream.ErrStorage, err)
		}
	}
	return nil
}

func (i *MemoryIndex) Close() error {
	return nil
}

// Compile-time check that MemoryIndex implements the Index interface.
var _ stream.Index = (*MemoryIndex)(nil)
