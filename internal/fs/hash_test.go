package fs

import (
	"errors"
	"path/filepath"
	"testing"

	"streamd/internal/stream"
)

func TestChecksum(t *testing.T) {
	t.Run("known digest", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "greeting.txt", "hello world")

		got, err := Checksum(path)
		if err != nil {
			t.Fatalf("Checksum() error = %v", err)
		}
		want := stream.Hash("b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9")
		if got != want {
			t.Errorf("Checksum() = %s, want %s", got, want)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "empty", "")

		got, err := Checksum(path)
		if err != nil {
			t.Fatalf("Checksum() error = %v", err)
		}
		want := stream.Hash("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855")
		if got != want {
			t.Errorf("Checksum() = %s, want %s", got, want)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Checksum(filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, stream.ErrFileNotFound) {
			t.Errorf("Checksum() error = %v, want ErrFileNotFound", err)
		}
	})
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"no extension", "/media/blob", "application/octet-stream"},
		{"unknown extension", "/media/file.zzz", "application/octet-stream"},
		{"known extension", "/media/data.json", "application/json"},
		{"parameters stripped", "/media/page.html", "text/html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMIMEType(tt.path); got != tt.want {
				t.Errorf("DetectMIMEType(%s) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
