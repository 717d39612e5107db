package testutil

import (
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"streamd/internal/stream"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
	Ctime       time.Time
}

// MockFilesystemManager is an in-memory filesystem for testing the daemon
// without touching disk. Safe for concurrent use; the daemon hashes scan
// results from a worker pool.
type MockFilesystemManager struct {
	mu    sync.RWMutex
	files map[string]*MockFile
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files: make(map[string]*MockFile),
	}
}

// AddFile adds a file to the mock filesystem.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.files[path] = &MockFile{
		Content:     content,
		Permissions: 0o644,
		ModTime:     now,
		IsDirectory: false,
		Ctime:       now,
	}
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.files[path] = &MockFile{
		Permissions: 0o755,
		ModTime:     now,
		IsDirectory: true,
		Ctime:       now,
	}
}

// Remove deletes a path, simulating a file vanishing mid-operation.
func (m *MockFilesystemManager) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

// Content returns a file's bytes for direct inspection.
func (m *MockFilesystemManager) Content(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[path]
	if !ok || f.IsDirectory {
		return nil, false
	}
	return f.Content, true
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*stream.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stream.ErrIO, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("%w: no such path: %s", stream.ErrIO, absPath)
	}

	return stream.NewPath(absPath, file.IsDirectory, m.infoFor(absPath, file)), nil
}

func (m *MockFilesystemManager) FindFiles(dir *stream.Path, recursive bool) ([]*stream.Path, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", stream.ErrIO, dir.String())
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := dir.String() + string(filepath.Separator)
	var names []string
	for p, f := range m.files {
		if f.IsDirectory || !strings.HasPrefix(p, prefix) {
			continue
		}
		if !recursive && strings.Contains(p[len(prefix):], string(filepath.Separator)) {
			continue
		}
		names = append(names, p)
	}
	sort.Strings(names)

	paths := make([]*stream.Path, 0, len(names))
	for _, p := range names {
		paths = append(paths, stream.NewPath(p, false, m.infoFor(p, m.files[p])))
	}
	return paths, nil
}

func (m *MockFilesystemManager) Describe(path *stream.Path, hash stream.Hash) (*stream.FileMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("%w: no such path: %s", stream.ErrIO, path.String())
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("%w: not a regular file: %s", stream.ErrIO, path.String())
	}

	return &stream.FileMetadata{
		Path:      path.String(),
		Hash:      hash,
		Size:      int64(len(file.Content)),
		MIMEType:  "application/octet-stream",
		CreatedAt: file.Ctime.Unix(),
	}, nil
}

func (m *MockFilesystemManager) Checksum(path string) (stream.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	file, ok := m.files[path]
	if !ok {
		return "", fmt.Errorf("%w: %s", stream.ErrFileNotFound, path)
	}
	if file.IsDirectory {
		return "", fmt.Errorf("%w: not a regular file: %s", stream.ErrIO, path)
	}
	return stream.HashFromDigest(sha256.Sum256(file.Content)), nil
}

// Open returns a reader over a file's content, mirroring what serving the
// file would stream.
func (m *MockFilesystemManager) Open(path *stream.Path) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("%w: no such path: %s", stream.ErrIO, path.String())
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("%w: cannot open directory: %s", stream.ErrIO, path.String())
	}
	return io.NopCloser(strings.NewReader(string(file.Content))), nil
}

func (m *MockFilesystemManager) infoFor(path string, f *MockFile) fs.FileInfo {
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(f.Content)),
		mode:    f.Permissions,
		modTime: f.ModTime,
		isDir:   f.IsDirectory,
		file:    f,
	}
}

// mockFileInfo implements fs.FileInfo.
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
	file    *MockFile
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return m.file }

// Compile-time check
var _ stream.FilesystemManager = (*MockFilesystemManager)(nil)
