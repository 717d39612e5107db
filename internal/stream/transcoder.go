package stream

import (
	"context"
	"io"
)

// Transcoder converts media files into the configured output format.
type Transcoder interface {
	// Stream starts a conversion of the file at path and returns its
	// output as a byte stream. A failed conversion surfaces ErrTranscode
	// on Read; closing the stream terminates the conversion immediately.
	Stream(ctx context.Context, path string) (io.ReadCloser, error)
}
