package stream

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the pipeline. Operations wrap one of these
// sentinels with %w and flatten the underlying cause into the message text,
// so callers branch on the kind with errors.Is but cannot unwrap the cause.
var (
	ErrIO           = errors.New("i/o error")
	ErrStorage      = errors.New("storage error")
	ErrNetwork      = errors.New("network error")
	ErrTranscode    = errors.New("transcode error")
	ErrInvalidHash  = errors.New("invalid hash")
	ErrFileNotFound = errors.New("file not found")
	ErrNotConnected = errors.New("not connected")
)

func invalidHashf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidHash, fmt.Sprintf(format, args...))
}
