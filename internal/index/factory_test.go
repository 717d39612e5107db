package index

import (
	"os"
	"path/filepath"
	"testing"

	"streamd/internal/config"
	"streamd/internal/stream"
)

func TestNewIndexFromConfig(t *testing.T) {
	t.Run("bolt with explicit path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.db")
		idx, err := NewIndexFromConfig(config.IndexConfig{Type: "bolt", Path: path}, "", stream.NewNopLogger())
		if err != nil {
			t.Fatalf("NewIndexFromConfig() error = %v", err)
		}
		defer idx.Close()

		if _, ok := idx.(*BoltIndex); !ok {
			t.Fatalf("NewIndexFromConfig() = %T, want *BoltIndex", idx)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("database not created at configured path: %v", err)
		}
	})

	t.Run("bolt defaults under the data directory", func(t *testing.T) {
		dataDir := t.TempDir()
		idx, err := NewIndexFromConfig(config.IndexConfig{Type: "bolt"}, dataDir, stream.NewNopLogger())
		if err != nil {
			t.Fatalf("NewIndexFromConfig() error = %v", err)
		}
		defer idx.Close()

		if _, err := os.Stat(filepath.Join(dataDir, IndexFileName)); err != nil {
			t.Errorf("database not created under data directory: %v", err)
		}
	})

	t.Run("bolt without a location fails", func(t *testing.T) {
		_, err := NewIndexFromConfig(config.IndexConfig{Type: "bolt"}, "", stream.NewNopLogger())
		if err == nil {
			t.Error("NewIndexFromConfig() accepted a bolt index with nowhere to live")
		}
	})

	t.Run("memory", func(t *testing.T) {
		idx, err := NewIndexFromConfig(config.IndexConfig{Type: "memory"}, "", stream.NewNopLogger())
		if err != nil {
			t.Fatalf("NewIndexFromConfig() error = %v", err)
		}
		if _, ok := idx.(*MemoryIndex); !ok {
			t.Errorf("NewIndexFromConfig() = %T, want *MemoryIndex", idx)
		}
	})

	t.Run("unknown type fails", func(t *testing.T) {
		_, err := NewIndexFromConfig(config.IndexConfig{Type: "redis"}, "", stream.NewNopLogger())
		if err == nil {
			t.Error("NewIndexFromConfig() accepted an unknown index type")
		}
	})
}
