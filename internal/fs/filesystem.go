package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"streamd/internal/stream"
)

// Manager is the real filesystem implementation of FilesystemManager. It
// performs actual filesystem operations using the os package and filters
// hidden and ignored entries out of discovery.
type Manager struct {
	ignore *IgnoreMatcher
}

// NewManager creates a filesystem manager. A nil matcher means only hidden
// entries are filtered.
func NewManager(ignore *IgnoreMatcher) *Manager {
	if ignore == nil {
		ignore = NewIgnoreMatcher(nil)
	}
	return &Manager{ignore: ignore}
}

// Resolve canonicalizes a raw path and returns a Path object. Symlinks are
// resolved here once so every path flowing through the pipeline uses the
// same spelling.
func (m *Manager) Resolve(rawPath string) (*stream.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving absolute path: %v", stream.ErrIO, err)
	}

	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %v", stream.ErrIO, absPath, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", stream.ErrIO, resolved, err)
	}

	// Special file types are not shareable content.
	mode := info.Mode()
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("%w: device files not supported: %s", stream.ErrIO, resolved)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("%w: named pipes not supported: %s", stream.ErrIO, resolved)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("%w: sockets not supported: %s", stream.ErrIO, resolved)
	}

	return stream.NewPath(resolved, info.IsDir(), info), nil
}

// Open opens a file for reading.
func (m *Manager) Open(path *stream.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("%w: cannot open directory as file: %s", stream.ErrIO, path.String())
	}
	f, err := os.Open(path.String())
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", stream.ErrIO, path.String(), err)
	}
	return f, nil
}

// FindFiles discovers regular files under the given directory path. Hidden
// entries are skipped; hidden directories are not descended into.
func (m *Manager) FindFiles(dir *stream.Path, recursive bool) ([]*stream.Path, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("%w: path is not a directory: %s", stream.ErrIO, dir.String())
	}

	var paths []*stream.Path

	if recursive {
		root := dir.String()
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != root && Hidden(d.Name()) {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if Hidden(d.Name()) {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return fmt.Errorf("relativizing %s: %w", p, err)
			}
			if m.ignore.Match(rel) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("stat %s: %w", p, err)
			}
			paths = append(paths, stream.NewPath(p, false, info))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: walking %s: %v", stream.ErrIO, root, err)
		}
	} else {
		entries, err := os.ReadDir(dir.String())
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", stream.ErrIO, dir.String(), err)
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			if Hidden(entry.Name()) || m.ignore.Match(entry.Name()) {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				return nil, fmt.Errorf("%w: stat %s: %v", stream.ErrIO, entry.Name(), err)
			}
			fullPath := filepath.Join(dir.String(), entry.Name())
			paths = append(paths, stream.NewPath(fullPath, false, info))
		}
	}

	return paths, nil
}

// Describe builds the index record for a file. The size comes from a fresh
// stat so a file that changed between hashing and describing is reported
// as it is now, not as it was.
func (m *Manager) Describe(path *stream.Path, hash stream.Hash) (*stream.FileMetadata, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("%w: not a regular file: %s", stream.ErrIO, path.String())
	}

	info, err := os.Stat(path.String())
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", stream.ErrIO, path.String(), err)
	}

	return &stream.FileMetadata{
		Path:      path.String(),
		Hash:      hash,
		Size:      info.Size(),
		MIMEType:  DetectMIMEType(path.String()),
		CreatedAt: createTime(info),
	}, nil
}

// Checksum streams the file at path through the content digest.
func (m *Manager) Checksum(path string) (stream.Hash, error) {
	return Checksum(path)
}

// Compile-time check that Manager implements the FilesystemManager interface.
var _ stream.FilesystemManager = (*Manager)(nil)
