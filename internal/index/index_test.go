package index

import (
	"path/filepath"
	"testing"

	"streamd/internal/stream"
)

func record(path string, hash stream.Hash) *stream.FileMetadata {
	return &stream.FileMetadata{
		Path:      path,
		Hash:      hash,
		Size:      512,
		MIMEType:  "video/mp4",
		CreatedAt: 1717243200,
	}
}

func openBolt(t *testing.T) stream.Index {
	t.Helper()
	idx, err := NewBoltIndex(filepath.Join(t.TempDir(), "index.db"), stream.NewNopLogger())
	if err != nil {
		t.Fatalf("NewBoltIndex() error = %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func openMemory(t *testing.T) stream.Index {
	t.Helper()
	return NewMemoryIndex()
}

func TestBoltIndex_Contract(t *testing.T) {
	testIndexContract(t, openBolt)
}

func TestMemoryIndex_Contract(t *testing.T) {
	testIndexContract(t, openMemory)
}

// testIndexContract pins the behavior both implementations share: lookups
// on both tables, hash ownership across rehashes and removals, and list
// ordering.
func testIndexContract(t *testing.T, open func(t *testing.T) stream.Index) {
	t.Run("lookups on an empty index return nothing", func(t *testing.T) {
		idx := open(t)

		m, err := idx.GetByPath("/media/nope.mp4")
		if err != nil {
			t.Fatalf("GetByPath() error = %v", err)
		}
		if m != nil {
			t.Errorf("GetByPath() = %+v, want nil", m)
		}

		m, err = idx.GetByHash("deadbeef")
		if err != nil {
			t.Fatalf("GetByHash() error = %v", err)
		}
		if m != nil {
			t.Errorf("GetByHash() = %+v, want nil", m)
		}
	})

	t.Run("upsert resolves from both tables", func(t *testing.T) {
		idx := open(t)
		want := record("/media/a.mp4", "hash-a")

		if err := idx.Upsert(want); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		byPath, err := idx.GetByPath("/media/a.mp4")
		if err != nil {
			t.Fatalf("GetByPath() error = %v", err)
		}
		if byPath == nil || *byPath != *want {
			t.Errorf("GetByPath() = %+v, want %+v", byPath, want)
		}

		byHash, err := idx.GetByHash("hash-a")
		if err != nil {
			t.Fatalf("GetByHash() error = %v", err)
		}
		if byHash == nil || *byHash != *want {
			t.Errorf("GetByHash() = %+v, want %+v", byHash, want)
		}
	})

	t.Run("upserting the same path keeps one record", func(t *testing.T) {
		idx := open(t)

		if err := idx.Upsert(record("/media/a.mp4", "hash-a")); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if err := idx.Upsert(record("/media/a.mp4", "hash-a")); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		records, err := idx.ListAll()
		if err != nil {
			t.Fatalf("ListAll() error = %v", err)
		}
		if len(records) != 1 {
			t.Errorf("ListAll() returned %d records, want 1", len(records))
		}
	})

	t.Run("rehashing a path clears its stale mapping", func(t *testing.T) {
		idx := open(t)

		if err := idx.Upsert(record("/media/a.mp4", "hash-old")); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if err := idx.Upsert(record("/media/a.mp4", "hash-new")); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		stale, err := idx.GetByHash("hash-old")
		if err != nil {
			t.Fatalf("GetByHash(old) error = %v", err)
		}
		if stale != nil {
			t.Errorf("stale hash still resolves to %+v", stale)
		}

		current, err := idx.GetByHash("hash-new")
		if err != nil {
			t.Fatalf("GetByHash(new) error = %v", err)
		}
		if current == nil || current.Path != "/media/a.mp4" {
			t.Errorf("GetByHash(new) = %+v, want record for /media/a.mp4", current)
		}
	})

	t.Run("rehashing a path leaves another path's claim alone", func(t *testing.T) {
		idx := open(t)

		// Two paths share content; the later upsert owns the mapping.
		if err := idx.Upsert(record("/media/a.mp4", "hash-shared")); err != nil {
			t.Fatalf("Upsert(a) error = %v", err)
		}
		if err := idx.Upsert(record("/media/b.mp4", "hash-shared")); err != nil {
			t.Fatalf("Upsert(b) error = %v", err)
		}

		// a moves on to new content; b's claim must survive.
		if err := idx.Upsert(record("/media/a.mp4", "hash-solo")); err != nil {
			t.Fatalf("Upsert(a, rehash) error = %v", err)
		}

		m, err := idx.GetByHash("hash-shared")
		if err != nil {
			t.Fatalf("GetByHash(shared) error = %v", err)
		}
		if m == nil || m.Path != "/media/b.mp4" {
			t.Errorf("GetByHash(shared) = %+v, want record for /media/b.mp4", m)
		}
	})

	t.Run("remove clears the record and its mapping", func(t *testing.T) {
		idx := open(t)

		if err := idx.Upsert(record("/media/a.mp4", "hash-a")); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if err := idx.Remove("/media/a.mp4"); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}

		if m, _ := idx.GetByPath("/media/a.mp4"); m != nil {
			t.Errorf("record survived removal: %+v", m)
		}
		if m, _ := idx.GetByHash("hash-a"); m != nil {
			t.Errorf("mapping survived removal: %+v", m)
		}
	})

	t.Run("removing an unknown path is a no-op", func(t *testing.T) {
		idx := open(t)
		if err := idx.Remove("/media/never-indexed.mp4"); err != nil {
			t.Errorf("Remove() error = %v", err)
		}
	})

	t.Run("remove keeps a mapping owned by another path", func(t *testing.T) {
		idx := open(t)

		if err := idx.Upsert(record("/media/a.mp4", "hash-shared")); err != nil {
			t.Fatalf("Upsert(a) error = %v", err)
		}
		if err := idx.Upsert(record("/media/b.mp4", "hash-shared")); err != nil {
			t.Fatalf("Upsert(b) error = %v", err)
		}

		// b owns the mapping; removing a must not take it down.
		if err := idx.Remove("/media/a.mp4"); err != nil {
			t.Fatalf("Remove(a) error = %v", err)
		}

		m, err := idx.GetByHash("hash-shared")
		if err != nil {
			t.Fatalf("GetByHash() error = %v", err)
		}
		if m == nil || m.Path != "/media/b.mp4" {
			t.Errorf("GetByHash() = %+v, want record for /media/b.mp4", m)
		}
	})

	t.Run("list returns records in path order", func(t *testing.T) {
		idx := open(t)

		for _, p := range []string{"/media/c.mp4", "/media/a.mp4", "/media/b.mp4"} {
			if err := idx.Upsert(record(p, stream.Hash("hash-"+p))); err != nil {
				t.Fatalf("Upsert(%s) error = %v", p, err)
			}
		}

		records, err := idx.ListAll()
		if err != nil {
			t.Fatalf("ListAll() error = %v", err)
		}

		want := []string{"/media/a.mp4", "/media/b.mp4", "/media/c.mp4"}
		if len(records) != len(want) {
			t.Fatalf("ListAll() returned %d records, want %d", len(records), len(want))
		}
		for i, w := range want {
			if records[i].Path != w {
				t.Errorf("records[%d].Path = %s, want %s", i, records[i].Path, w)
			}
		}
	})
}
