package index

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"streamd/internal/stream"
)

// WriteBackup streams a zstd-compressed snapshot of the index to path. The
// snapshot lands under a temporary name and is renamed into place, so an
// interrupted backup never leaves a half-written file behind.
func WriteBackup(idx stream.Index, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating backup directory: %v", stream.ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".backup-*")
	if err != nil {
		return fmt.Errorf("%w: creating backup file: %v", stream.ErrIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("%w: initializing compressor: %v", stream.ErrIO, err)
	}

	if err := idx.Backup(enc); err != nil {
		enc.Close()
		tmp.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: finalizing compressor: %v", stream.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing backup file: %v", stream.ErrIO, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: placing backup: %v", stream.ErrIO, err)
	}
	return nil
}

// RestoreBackup decompresses a snapshot into dbPath. It refuses to
// overwrite an existing database; move it aside first.
func RestoreBackup(backupPath, dbPath string) error {
	if _, err := os.Stat(dbPath); err == nil {
		return fmt.Errorf("%w: index already exists at %s", stream.ErrStorage, dbPath)
	}

	f, err := os.Open(backupPath)
	if err != nil {
		return fmt.Errorf("%w: opening backup: %v", stream.ErrIO, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: initializing decompressor: %v", stream.ErrIO, err)
	}
	defer dec.Close()

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating index directory: %v", stream.ErrIO, err)
	}
	tmp, err := os.CreateTemp(dir, ".restore-*")
	if err != nil {
		return fmt.Errorf("%w: creating restore file: %v", stream.ErrIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, dec); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: decompressing backup: %v", stream.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing restore file: %v", stream.ErrIO, err)
	}

	if err := os.Rename(tmpName, dbPath); err != nil {
		return fmt.Errorf("%w: placing restored index: %v", stream.ErrIO, err)
	}
	return nil
}
