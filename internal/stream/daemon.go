package stream

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
)

// scanWorkers bounds the goroutines hashing files during the startup scan.
const scanWorkers = 4

// Daemon is the orchestration layer tying the pipeline together: it owns
// the watcher's lifetime, seeds the index and the blob store from the
// configured roots at startup, and serves the share workflows across Index
// and ContentNode.
type Daemon struct {
	index      Index
	node       ContentNode
	fsmgr      FilesystemManager
	transcoder Transcoder
	logger     Logger
	clock      Clock
	idgen      IDGenerator

	roots  []string
	cancel context.CancelFunc
	closed atomic.Bool
}

// DaemonDeps carries the daemon's injected dependencies. Index and Node are
// shared handles: the watcher writes to the same index concurrently, and
// closing either remains the caller's job.
type DaemonDeps struct {
	Index      Index
	Node       ContentNode
	Watcher    Watcher
	Filesystem FilesystemManager
	Transcoder Transcoder
	Logger     Logger
	Clock      Clock
	IDGen      IDGenerator
	WatchRoots []string
}

// StartDaemon spawns the watcher under a cancellation signal the daemon
// owns, then synchronously scans every watch root so both stores reflect
// files that existed before the process came up.
func StartDaemon(deps DaemonDeps) (*Daemon, error) {
	d := &Daemon{
		index:      deps.Index,
		node:       deps.Node,
		fsmgr:      deps.Filesystem,
		transcoder: deps.Transcoder,
		logger:     deps.Logger,
		clock:      deps.Clock,
		idgen:      deps.IDGen,
		roots:      deps.WatchRoots,
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	go func() {
		if err := deps.Watcher.Run(ctx); err != nil {
			d.logger.Error("watcher stopped", "error", err)
		}
	}()

	d.scan(ctx)
	return d, nil
}

// scan registers every regular file under every watch root, depth first.
// Per-file failures are logged and skipped; a bad file never aborts the
// scan.
func (d *Daemon) scan(ctx context.Context) {
	p := pool.New().WithMaxGoroutines(scanWorkers)
	count := 0

	for _, root := range d.roots {
		rp, err := d.fsmgr.Resolve(root)
		if err != nil {
			d.logger.Warn("skipping watch root", "root", root, "error", err)
			continue
		}
		files, err := d.fsmgr.FindFiles(rp, true)
		if err != nil {
			d.logger.Warn("scanning watch root failed", "root", root, "error", err)
			continue
		}
		for _, f := range files {
			f := f
			count++
			p.Go(func() {
				if _, err := d.Register(ctx, f); err != nil {
					d.logger.Warn("skipping file during scan", "path", f.String(), "error", err)
				}
			})
		}
	}

	p.Wait()
	d.logger.Info("startup scan complete", "roots", len(d.roots), "files", count)
}

// Register makes a file available on the node and records its metadata in
// the index. The node import always happens first: the content hash must
// exist on the network layer before the index references it.
func (d *Daemon) Register(ctx context.Context, path *Path) (Hash, error) {
	if d.closed.Load() {
		return "", fmt.Errorf("%w: daemon is closed", ErrNotConnected)
	}

	hash, err := d.node.ImportReference(ctx, path.String())
	if err != nil {
		return "", fmt.Errorf("importing %s: %w", path.String(), err)
	}

	meta, err := d.fsmgr.Describe(path, hash)
	if err != nil {
		return "", fmt.Errorf("describing %s: %w", path.String(), err)
	}

	if err := d.index.Upsert(meta); err != nil {
		return "", fmt.Errorf("indexing %s: %w", path.String(), err)
	}

	return hash, nil
}

// ShareFile registers the file at rawPath and returns an encoded ticket
// for it, named after the file. Registering twice is idempotent: identical
// content converges on the same hash.
func (d *Daemon) ShareFile(ctx context.Context, rawPath string) (string, error) {
	if d.closed.Load() {
		return "", fmt.Errorf("%w: daemon is closed", ErrNotConnected)
	}
	op := d.idgen.New()

	p, err := d.fsmgr.Resolve(rawPath)
	if err != nil {
		return "", err
	}
	d.logger.Info("sharing file", "op", op, "path", p.String())

	hash, err := d.Register(ctx, p)
	if err != nil {
		return "", err
	}

	ticket := d.node.GenerateTicket(hash, p.Name())
	encoded, err := EncodeTicket(ticket)
	if err != nil {
		return "", err
	}

	d.logger.Info("file shared", "op", op, "hash", hash, "name", ticket.Name)
	return encoded, nil
}

// ShareFolder registers every immediate file in the directory, stores a
// collection over their hashes, and returns a ticket for the collection
// named after the folder. Subdirectories are not descended into; the
// recursive path is the startup scan.
func (d *Daemon) ShareFolder(ctx context.Context, rawPath string) (string, error) {
	if d.closed.Load() {
		return "", fmt.Errorf("%w: daemon is closed", ErrNotConnected)
	}
	op := d.idgen.New()

	p, err := d.fsmgr.Resolve(rawPath)
	if err != nil {
		return "", err
	}
	if !p.IsDir() {
		return "", fmt.Errorf("%w: not a directory: %s", ErrIO, p.String())
	}
	d.logger.Info("sharing folder", "op", op, "path", p.String())

	files, err := d.fsmgr.FindFiles(p, false)
	if err != nil {
		return "", err
	}

	hashes := make([]Hash, 0, len(files))
	for _, f := range files {
		hash, err := d.Register(ctx, f)
		if err != nil {
			return "", err
		}
		hashes = append(hashes, hash)
	}
	if len(hashes) == 0 {
		return "", fmt.Errorf("%w: no files in %s", ErrIO, p.String())
	}

	collection, err := d.node.CreateCollection(ctx, hashes)
	if err != nil {
		return "", fmt.Errorf("building collection for %s: %w", p.String(), err)
	}

	ticket := d.node.GenerateTicket(collection, p.Name())
	encoded, err := EncodeTicket(ticket)
	if err != nil {
		return "", err
	}

	d.logger.Info("folder shared", "op", op, "hash", collection, "files", len(hashes))
	return encoded, nil
}

// ListFiles returns the indexed records.
func (d *Daemon) ListFiles() ([]*FileMetadata, error) {
	return d.index.ListAll()
}

// OpenStream resolves a content hash to its indexed file and starts a
// transcode of it. The caller owns the returned stream.
func (d *Daemon) OpenStream(ctx context.Context, hash Hash) (io.ReadCloser, error) {
	if d.closed.Load() {
		return nil, fmt.Errorf("%w: daemon is closed", ErrNotConnected)
	}

	meta, err := d.index.GetByHash(hash)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: no indexed file for hash %s", ErrFileNotFound, hash)
	}
	return d.transcoder.Stream(ctx, meta.Path)
}

// Close signals the watcher to stop and returns without waiting for it.
// In-flight hashing units run to completion in the background. Index and
// node shutdown belong to whoever opened them.
func (d *Daemon) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	d.cancel()
	d.logger.Info("daemon closed")
	return nil
}
