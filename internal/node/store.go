package node

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"streamd/internal/fs"
	"streamd/internal/stream"
)

// BlobStore is a content-addressed store over the local filesystem. Owned
// blobs hold their bytes directly; imported files are recorded by
// reference, so sharing a file never copies it. Layout:
//
//	<root>/
//	  objects/
//	    ab/cdef...     (owned blobs, sharded by the first two hex chars)
//	  refs/
//	    ab/cdef...     (reference entries holding the source path)
type BlobStore struct {
	root       string
	objectsDir string
	refsDir    string
}

// NewBlobStore creates a blob store rooted at the given path.
func NewBlobStore(root string) (*BlobStore, error) {
	objectsDir := filepath.Join(root, "objects")
	refsDir := filepath.Join(root, "refs")

	for _, dir := range []string{objectsDir, refsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating blob directory: %v", stream.ErrIO, err)
		}
	}

	return &BlobStore{
		root:       root,
		objectsDir: objectsDir,
		refsDir:    refsDir,
	}, nil
}

// shardPath splits a validated hash into a two-char directory and the
// remainder, under base.
func shardPath(base string, hash stream.Hash) (string, error) {
	if _, err := hash.Digest(); err != nil {
		return "", err
	}
	h := hash.String()
	return filepath.Join(base, h[:2], h[2:]), nil
}

// ImportReference makes the file at path available under its content hash
// without copying the bytes: the entry records where the bytes live.
// Importing the same content twice converges on one entry.
func (s *BlobStore) ImportReference(path string) (stream.Hash, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", stream.ErrFileNotFound, path)
		}
		return "", fmt.Errorf("%w: stat %s: %v", stream.ErrIO, path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: not a regular file: %s", stream.ErrIO, path)
	}

	hash, err := fs.Checksum(path)
	if err != nil {
		return "", err
	}

	refPath, err := shardPath(s.refsDir, hash)
	if err != nil {
		return "", err
	}
	if err := atomicWrite(refPath, strings.NewReader(path)); err != nil {
		return "", err
	}
	return hash, nil
}

// PutBytes stores the given bytes as an owned blob and returns their hash.
// Storing identical bytes twice is a no-op.
func (s *BlobStore) PutBytes(data []byte) (stream.Hash, error) {
	hash := stream.HashFromDigest(sha256.Sum256(data))

	objPath, err := shardPath(s.objectsDir, hash)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(objPath); err == nil {
		return hash, nil
	}
	if err := atomicWrite(objPath, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return hash, nil
}

// Open returns the blob's content and size. Owned blobs win over
// references. A reference whose source file has vanished reports the blob
// as missing.
func (s *BlobStore) Open(hash stream.Hash) (io.ReadCloser, int64, error) {
	objPath, err := shardPath(s.objectsDir, hash)
	if err != nil {
		return nil, 0, err
	}
	if f, err := os.Open(objPath); err == nil {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, fmt.Errorf("%w: stat blob %s: %v", stream.ErrIO, hash, err)
		}
		return f, info.Size(), nil
	}

	src, err := s.resolveRef(hash)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%w: source for %s is gone: %s", stream.ErrFileNotFound, hash, src)
		}
		return nil, 0, fmt.Errorf("%w: opening source %s: %v", stream.ErrIO, src, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("%w: stat source %s: %v", stream.ErrIO, src, err)
	}
	return f, info.Size(), nil
}

// Stat returns the blob's size without opening its content.
func (s *BlobStore) Stat(hash stream.Hash) (int64, error) {
	objPath, err := shardPath(s.objectsDir, hash)
	if err != nil {
		return 0, err
	}
	if info, err := os.Stat(objPath); err == nil {
		return info.Size(), nil
	}

	src, err := s.resolveRef(hash)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: source for %s is gone: %s", stream.ErrFileNotFound, hash, src)
		}
		return 0, fmt.Errorf("%w: stat source %s: %v", stream.ErrIO, src, err)
	}
	return info.Size(), nil
}

// resolveRef reads the source path recorded for hash.
func (s *BlobStore) resolveRef(hash stream.Hash) (string, error) {
	refPath, err := shardPath(s.refsDir, hash)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: no blob for hash %s", stream.ErrFileNotFound, hash)
		}
		return "", fmt.Errorf("%w: reading reference for %s: %v", stream.ErrIO, hash, err)
	}
	return string(data), nil
}

// atomicWrite writes r to destPath via a temp file and rename, creating
// the parent directory as needed.
func atomicWrite(destPath string, r io.Reader) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating blob shard: %v", stream.ErrIO, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", stream.ErrIO, err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return fmt.Errorf("%w: writing blob data: %v", stream.ErrIO, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %v", stream.ErrIO, err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("%w: placing blob: %v", stream.ErrIO, err)
	}

	success = true
	return nil
}
