package stream

// FilesystemManager abstracts file access so the daemon and watcher can be
// exercised against fakes.
type FilesystemManager interface {
	// Resolve canonicalizes a raw path, stats it, and rejects special
	// files. Failures carry ErrIO.
	Resolve(rawPath string) (*Path, error)

	// FindFiles discovers regular files under a directory. When recursive
	// is false only immediate children are returned.
	FindFiles(dir *Path, recursive bool) ([]*Path, error)

	// Describe builds the metadata record for a file around the given
	// content hash: fresh size, MIME type, creation time.
	Describe(path *Path, hash Hash) (*FileMetadata, error)

	// Checksum streams the file's content through the content digest.
	Checksum(path string) (Hash, error)
}
