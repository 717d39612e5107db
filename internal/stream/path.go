package stream

import (
	"io/fs"
	"path/filepath"
)

// Path is a resolved filesystem path with cached stat info. Paths are
// produced by FilesystemManager.Resolve, which canonicalizes the raw path
// and verifies it exists.
type Path struct {
	absPath string
	isDir   bool
	info    fs.FileInfo
}

// NewPath creates a Path from its components. This is primarily for use by
// FilesystemManager implementations.
func NewPath(absPath string, isDir bool, info fs.FileInfo) *Path {
	return &Path{
		absPath: absPath,
		isDir:   isDir,
		info:    info,
	}
}

// String returns the absolute path as a string.
func (p *Path) String() string {
	return p.absPath
}

// Name returns the last element of the path.
func (p *Path) Name() string {
	return filepath.Base(p.absPath)
}

// IsDir returns true if this path points to a directory.
func (p *Path) IsDir() bool {
	return p.isDir
}

// Info returns the cached file info from when the path was resolved.
func (p *Path) Info() fs.FileInfo {
	return p.info
}
