package fs

import (
	"crypto/sha256"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"streamd/internal/stream"
)

// fallbackMIMEType is reported when the extension maps to nothing.
const fallbackMIMEType = "application/octet-stream"

// Checksum computes the SHA-256 digest of the file at path. The file is
// streamed, never loaded whole.
func Checksum(path string) (stream.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", stream.ErrFileNotFound, path)
		}
		return "", fmt.Errorf("%w: opening %s: %v", stream.ErrIO, path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("%w: hashing %s: %v", stream.ErrIO, path, err)
	}
	return stream.HashFromSum(h.Sum(nil)), nil
}

// DetectMIMEType guesses a MIME type from the path's extension. The result
// carries no parameters; unknown extensions map to application/octet-stream.
func DetectMIMEType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return fallbackMIMEType
	}
	typ := mime.TypeByExtension(ext)
	if typ == "" {
		return fallbackMIMEType
	}
	parsed, _, err := mime.ParseMediaType(typ)
	if err != nil {
		return fallbackMIMEType
	}
	return parsed
}
