package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"streamd/internal/stream"
)

// stderrLimit caps how much diagnostic output is kept for error reporting.
const stderrLimit = 16 << 10

// Options configures an FFmpeg transcoder. Zero values take the defaults
// below.
type Options struct {
	// FFmpegPath is the binary to spawn. Defaults to "ffmpeg" on PATH.
	FFmpegPath string

	// Format is the output container. Defaults to fragmented mp4, the
	// only common container that works over a non-seekable pipe.
	Format string

	VideoCodec string
	AudioCodec string

	// ExtraArgs are appended before the output flags, for tuning options
	// like bitrate or scaling.
	ExtraArgs []string

	Logger stream.Logger
}

// FFmpeg converts media by spawning the ffmpeg binary and streaming its
// stdout.
type FFmpeg struct {
	opts Options
}

// New creates a transcoder, filling in defaults for unset options.
func New(opts Options) *FFmpeg {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.Format == "" {
		opts.Format = "mp4"
	}
	if opts.VideoCodec == "" {
		opts.VideoCodec = "libx264"
	}
	if opts.AudioCodec == "" {
		opts.AudioCodec = "aac"
	}
	if opts.Logger == nil {
		opts.Logger = stream.NewNopLogger()
	}
	return &FFmpeg{opts: opts}
}

// Check verifies the ffmpeg binary runs at all.
func (f *FFmpeg) Check(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, f.opts.FFmpegPath, "-version")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s unavailable: %v", stream.ErrTranscode, f.opts.FFmpegPath, err)
	}
	return nil
}

// buildArgs assembles the ffmpeg invocation for one input file. Output
// goes to stdout; mp4 output needs fragment flags because a pipe cannot
// be seeked to finalize the container.
func (f *FFmpeg) buildArgs(path string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-c:v", f.opts.VideoCodec,
		"-c:a", f.opts.AudioCodec,
	}
	args = append(args, f.opts.ExtraArgs...)
	if f.opts.Format == "mp4" {
		args = append(args, "-movflags", "frag_keyframe+empty_moov")
	}
	args = append(args, "-f", f.opts.Format, "pipe:1")
	return args
}

// Stream starts converting the file at path and returns the output as it
// is produced. A conversion that exits non-zero surfaces ErrTranscode
// carrying ffmpeg's diagnostics from the final Read.
func (f *FFmpeg) Stream(ctx context.Context, path string) (io.ReadCloser, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", stream.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: stat %s: %v", stream.ErrIO, path, err)
	}

	cmd := exec.CommandContext(ctx, f.opts.FFmpegPath, f.buildArgs(path)...)
	stderr := &limitedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: opening output pipe: %v", stream.ErrTranscode, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting %s: %v", stream.ErrTranscode, f.opts.FFmpegPath, err)
	}

	f.opts.Logger.Debug("transcode started", "path", path, "pid", cmd.Process.Pid)
	return &Stream{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

// Stream is a running conversion. Reading drains the converter's output;
// closing kills the converter immediately.
type Stream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *limitedBuffer

	mu   sync.Mutex
	done bool
	err  error
}

// Read returns converted bytes. End of output triggers a wait on the
// converter: a clean exit passes io.EOF through, a failure replaces it
// with ErrTranscode carrying the captured diagnostics.
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if errors.Is(err, io.EOF) {
		if werr := s.wait(); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// wait reaps the converter once and caches the verdict.
func (s *Stream) wait() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return s.err
	}
	s.done = true

	if err := s.cmd.Wait(); err != nil {
		msg := strings.TrimSpace(s.stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		s.err = fmt.Errorf("%w: %s", stream.ErrTranscode, msg)
	}
	return s.err
}

// Close terminates the conversion without waiting for it to finish.
// Closing a finished stream is a no-op.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true

	s.cmd.Process.Kill()
	s.stdout.Close()
	s.cmd.Wait()
	return nil
}

// Compile-time check that FFmpeg implements the Transcoder interface.
var _ stream.Transcoder = (*FFmpeg)(nil)

// limitedBuffer keeps the first limit bytes written and silently drops the
// rest, so a chatty converter cannot grow memory unbounded.
type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if remaining := b.limit - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
