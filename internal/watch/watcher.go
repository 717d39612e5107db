package watch

import (
	"context"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sourcegraph/conc/pool"

	"streamd/internal/fs"
	"streamd/internal/stream"
)

const (
	// DefaultTick is how often pending paths are checked for elapsed
	// debounce windows.
	DefaultTick = 200 * time.Millisecond

	// DefaultDebounce is how long a path must stay quiet after its last
	// write before it is hashed.
	DefaultDebounce = 500 * time.Millisecond

	// hashWorkers bounds concurrent hashing units.
	hashWorkers = 4
)

// Options configures a Watcher. Roots must be canonical absolute
// directories; the watcher trusts them as-is so its index keys agree with
// the startup scan's.
type Options struct {
	Roots      []string
	Index      stream.Index
	Filesystem stream.FilesystemManager
	Ignore     *fs.IgnoreMatcher
	Logger     stream.Logger
	Tick       time.Duration
	Debounce   time.Duration
}

// Watcher keeps the index in step with live filesystem changes. Writes are
// debounced: a path is hashed only after staying quiet for the debounce
// window, so a file receiving a burst of writes is hashed once. Deletes
// skip the debounce entirely.
type Watcher struct {
	opts Options
	fw   *fsnotify.Watcher

	// pending maps a path to the deadline after which it may be hashed.
	// Only the Run goroutine touches it.
	pending map[string]time.Time
}

// NewWatcher creates a watcher over the given options, applying default
// timings where unset.
func NewWatcher(opts Options) *Watcher {
	if opts.Tick == 0 {
		opts.Tick = DefaultTick
	}
	if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Ignore == nil {
		opts.Ignore = fs.NewIgnoreMatcher(nil)
	}
	return &Watcher{
		opts:    opts,
		pending: make(map[string]time.Time),
	}
}

// Run watches the roots until ctx is cancelled or the event source closes.
// Cancellation is a normal shutdown, not an error. Individual file
// failures are logged and skipped; the loop outlives them all.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: creating watcher: %v", stream.ErrIO, err)
	}
	defer fw.Close()
	w.fw = fw

	for _, root := range w.opts.Roots {
		if err := w.watchTree(root); err != nil {
			return err
		}
	}

	hashers := pool.New().WithMaxGoroutines(hashWorkers)
	defer hashers.Wait()

	ticker := time.NewTicker(w.opts.Tick)
	defer ticker.Stop()

	w.opts.Logger.Info("watching", "roots", len(w.opts.Roots))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Warn("watch error", "error", err)
		case now := <-ticker.C:
			w.sweep(now, hashers)
		}
	}
}

// watchTree registers non-recursive watches on root and every directory
// below it. Hidden directories are not descended into.
func (w *Watcher) watchTree(root string) error {
	err := filepath.WalkDir(root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && fs.Hidden(d.Name()) {
			return iofs.SkipDir
		}
		return w.fw.Add(p)
	})
	if err != nil {
		return fmt.Errorf("%w: watching %s: %v", stream.ErrIO, root, err)
	}
	return nil
}

// handleEvent routes one filesystem event. Deletes and renames drop the
// path immediately; creates and writes (re)arm the debounce window. The
// newest deadline always wins.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	name := ev.Name
	if fs.Hidden(filepath.Base(name)) || w.ignored(name) {
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		delete(w.pending, name)
		if err := w.opts.Index.Remove(name); err != nil {
			w.opts.Logger.Warn("dropping removed path", "path", name, "error", err)
		}

	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		info, err := os.Stat(name)
		if err != nil {
			// Vanished between event and stat; the remove event follows.
			return
		}
		if info.IsDir() {
			if ev.Op.Has(fsnotify.Create) {
				w.watchNewDir(name)
			}
			return
		}
		if !info.Mode().IsRegular() {
			return
		}
		w.pending[name] = time.Now().Add(w.opts.Debounce)
	}
}

// watchNewDir adds watches under a directory that appeared after startup
// and schedules the files already inside it. A directory moved in whole
// fires no events for its contents, so they must be picked up here.
func (w *Watcher) watchNewDir(dir string) {
	deadline := time.Now().Add(w.opts.Debounce)
	err := filepath.WalkDir(dir, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && fs.Hidden(d.Name()) {
				return iofs.SkipDir
			}
			return w.fw.Add(p)
		}
		if !d.Type().IsRegular() || fs.Hidden(d.Name()) || w.ignored(p) {
			return nil
		}
		w.pending[p] = deadline
		return nil
	})
	if err != nil {
		w.opts.Logger.Warn("watching new directory", "path", dir, "error", err)
	}
}

// sweep hands every pending path whose window has elapsed to the hashing
// pool.
func (w *Watcher) sweep(now time.Time, hashers *pool.Pool) {
	for path, deadline := range w.pending {
		if now.Before(deadline) {
			continue
		}
		path := path
		delete(w.pending, path)
		hashers.Go(func() {
			w.process(path)
		})
	}
}

// process hashes one settled path and upserts its record. The path is
// stat'd again first: it may have vanished while waiting in the pool.
func (w *Watcher) process(path string) {
	info, err := os.Stat(path)
	if err != nil {
		w.opts.Logger.Debug("skipping vanished file", "path", path)
		return
	}
	if !info.Mode().IsRegular() {
		return
	}

	hash, err := w.opts.Filesystem.Checksum(path)
	if err != nil {
		w.opts.Logger.Warn("hashing failed", "path", path, "error", err)
		return
	}

	meta, err := w.opts.Filesystem.Describe(stream.NewPath(path, false, info), hash)
	if err != nil {
		w.opts.Logger.Warn("describing failed", "path", path, "error", err)
		return
	}

	if err := w.opts.Index.Upsert(meta); err != nil {
		w.opts.Logger.Warn("indexing failed", "path", path, "error", err)
		return
	}
	w.opts.Logger.Info("indexed", "path", path, "hash", hash)
}

// ignored reports whether the path matches the ignore patterns, relative
// to its watch root.
func (w *Watcher) ignored(path string) bool {
	for _, root := range w.opts.Roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || filepath.IsAbs(rel) {
			continue
		}
		if len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator) {
			continue
		}
		return w.opts.Ignore.Match(rel)
	}
	return false
}

// Compile-time check that Watcher implements the stream Watcher interface.
var _ stream.Watcher = (*Watcher)(nil)
