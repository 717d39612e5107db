package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"streamd/internal/config"
	"streamd/internal/fs"
	"streamd/internal/index"
	"streamd/internal/node"
	"streamd/internal/stream"
	"streamd/internal/transcode"
	"streamd/internal/watch"
)

// App is the application layer between the CLI and the daemon. It
// constructs dependencies from config on demand, so a command that only
// reads the index never touches the network, and manages every opened
// resource's lifecycle on Close.
type App struct {
	cfg     *config.Config
	fsmgr   *fs.Manager
	matcher *fs.IgnoreMatcher
	logger  stream.Logger
	logFile *os.File

	idx    stream.Index
	node   *node.Node
	daemon *stream.Daemon
}

// NewApp creates an App from the given config. operation identifies the
// CLI command being run (e.g. "Run", "ShareFile") and tags every log line.
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, cfg.LogLevel, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger.With("cmd", operation)}

	matcher := fs.NewIgnoreMatcher(ignorePatterns(cfg, logger))

	return &App{
		cfg:     cfg,
		fsmgr:   fs.NewManager(matcher),
		matcher: matcher,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// ignorePatterns merges the configured patterns with each watch root's
// ignore file. A missing ignore file is normal; an unreadable one is
// logged and skipped.
func ignorePatterns(cfg *config.Config, logger stream.Logger) []string {
	patterns := append([]string{}, cfg.Watch.Ignore...)
	for _, root := range cfg.Watch.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		filePatterns, err := fs.ParseIgnoreFile(filepath.Join(abs, fs.IgnoreFileName))
		if err != nil {
			logger.Warn("skipping unreadable ignore file", "root", abs, "error", err)
			continue
		}
		patterns = append(patterns, filePatterns...)
	}
	return patterns
}

// Logger exposes the app's logger for CLI-level messages.
func (a *App) Logger() stream.Logger {
	return a.logger
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// OpenIndex opens the configured index once and reuses it afterwards.
func (a *App) OpenIndex() (stream.Index, error) {
	if a.idx != nil {
		return a.idx, nil
	}
	idx, err := index.NewIndexFromConfig(a.cfg.Index, a.cfg.DataDir, a.logger)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	a.idx = idx
	return idx, nil
}

// IndexPath returns where the durable index lives on disk.
func (a *App) IndexPath() string {
	if a.cfg.Index.Path != "" {
		return a.cfg.Index.Path
	}
	return filepath.Join(a.cfg.DataDir, index.IndexFileName)
}

// StartNode brings the content node online once. Ephemeral mode rebinds
// the endpoint to an OS-assigned port so one-shot commands never collide
// with a running daemon.
func (a *App) StartNode(ephemeral bool) (*node.Node, error) {
	if a.node != nil {
		return a.node, nil
	}
	listen := a.cfg.Node.Listen
	if ephemeral {
		listen = "127.0.0.1:0"
	}
	n, err := node.Start(node.Options{
		DataDir:  a.cfg.DataDir,
		Listen:   listen,
		RelayURL: a.cfg.Node.RelayURL,
		Logger:   a.logger,
		Clock:    stream.RealClock{},
	})
	if err != nil {
		return nil, fmt.Errorf("starting node: %w", err)
	}
	a.node = n
	return n, nil
}

// NodeIdentity loads or creates the node identity without bringing the
// node online.
func (a *App) NodeIdentity() (string, error) {
	id, err := node.LoadOrCreateIdentity(a.cfg.DataDir)
	if err != nil {
		return "", err
	}
	return id.NodeID(), nil
}

// Transcoder builds the configured transcoder.
func (a *App) Transcoder() *transcode.FFmpeg {
	return transcode.New(transcode.Options{
		FFmpegPath: a.cfg.Transcode.FFmpegPath,
		Format:     a.cfg.Transcode.Format,
		VideoCodec: a.cfg.Transcode.VideoCodec,
		AudioCodec: a.cfg.Transcode.AudioCodec,
		ExtraArgs:  a.cfg.Transcode.ExtraArgs,
		Logger:     a.logger,
	})
}

// resolveRoots canonicalizes the configured watch roots. Every root must
// exist and be a directory; the daemon and watcher trust these paths
// as-is, so this is the one place symlinks are chased.
func (a *App) resolveRoots() ([]string, error) {
	roots := make([]string, 0, len(a.cfg.Watch.Roots))
	for _, r := range a.cfg.Watch.Roots {
		p, err := a.fsmgr.Resolve(r)
		if err != nil {
			return nil, fmt.Errorf("resolving watch root %s: %w", r, err)
		}
		if !p.IsDir() {
			return nil, fmt.Errorf("%w: watch root is not a directory: %s", stream.ErrIO, p.String())
		}
		roots = append(roots, p.String())
	}
	return roots, nil
}

// StartDaemon wires index, node, watcher, and transcoder into a running
// daemon. Ephemeral mode is for one-shot commands: no watch roots, no
// startup scan, endpoint on an OS-assigned port.
func (a *App) StartDaemon(ephemeral bool) (*stream.Daemon, error) {
	if a.daemon != nil {
		return a.daemon, nil
	}

	idx, err := a.OpenIndex()
	if err != nil {
		return nil, err
	}
	n, err := a.StartNode(ephemeral)
	if err != nil {
		return nil, err
	}

	var roots []string
	if !ephemeral {
		roots, err = a.resolveRoots()
		if err != nil {
			return nil, err
		}
	}

	w := watch.NewWatcher(watch.Options{
		Roots:      roots,
		Index:      idx,
		Filesystem: a.fsmgr,
		Ignore:     a.matcher,
		Logger:     a.logger,
	})

	d, err := stream.StartDaemon(stream.DaemonDeps{
		Index:      idx,
		Node:       n,
		Watcher:    w,
		Filesystem: a.fsmgr,
		Transcoder: a.Transcoder(),
		Logger:     a.logger,
		Clock:      stream.RealClock{},
		IDGen:      stream.UUIDGenerator{},
		WatchRoots: roots,
	})
	if err != nil {
		return nil, fmt.Errorf("starting daemon: %w", err)
	}
	a.daemon = d
	return d, nil
}

// Share resolves a raw path and shares it: files get a file ticket,
// directories get a collection ticket over their immediate files. A
// daemon is started ephemerally if none is running yet.
func (a *App) Share(ctx context.Context, rawPath string) (string, error) {
	d, err := a.StartDaemon(true)
	if err != nil {
		return "", err
	}

	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	if p.IsDir() {
		return d.ShareFolder(ctx, p.String())
	}
	return d.ShareFile(ctx, p.String())
}

// Close tears down whatever this App opened, in reverse order: daemon
// first so nothing new reaches the node or index, then node, then index.
func (a *App) Close() error {
	var firstErr error

	if a.daemon != nil {
		if err := a.daemon.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing daemon: %w", err)
		}
	}
	if a.node != nil {
		if err := a.node.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing node: %w", err)
		}
	}
	if a.idx != nil {
		if err := a.idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing index: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
