package index

import (
	"fmt"
	"path/filepath"

	"streamd/internal/config"
	"streamd/internal/stream"
)

// IndexFileName is the database file created under the configured data
// directory when no explicit path is set.
const IndexFileName = "index.db"

// NewIndexFromConfig creates an Index implementation based on the index
// config type.
func NewIndexFromConfig(cfg config.IndexConfig, dataDir string, logger stream.Logger) (stream.Index, error) {
	switch cfg.Type {
	case "bolt":
		path := cfg.Path
		if path == "" {
			if dataDir == "" {
				return nil, fmt.Errorf("data_dir required for bolt index")
			}
			path = filepath.Join(dataDir, IndexFileName)
		}
		return NewBoltIndex(path, logger)
	case "memory":
		return NewMemoryIndex(), nil
	default:
		return nil, fmt.Errorf("unknown index type: %s", cfg.Type)
	}
}
