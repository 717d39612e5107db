package index

import (
	"encoding/binary"
	"errors"
	"fmt"

	"streamd/internal/stream"
)

// Records are stored as big-endian binary: three length-prefixed strings
// (path, hash, MIME type), the size as u64, and the creation time as i64
// Unix seconds. There is no version marker; the layout is the schema.

var errTruncated = errors.New("record truncated")

func encodeRecord(m *stream.FileMetadata) ([]byte, error) {
	for _, s := range []string{m.Path, string(m.Hash), m.MIMEType} {
		if len(s) > int(^uint16(0)) {
			return nil, fmt.Errorf("field too long: %d bytes", len(s))
		}
	}

	buf := make([]byte, 0, 6+len(m.Path)+len(m.Hash)+len(m.MIMEType)+16)
	buf = appendString(buf, m.Path)
	buf = appendString(buf, string(m.Hash))
	buf = binary.BigEndian.AppendUint64(buf, uint64(m.Size))
	buf = appendString(buf, m.MIMEType)
	buf = binary.BigEndian.AppendUint64(buf, uint64(m.CreatedAt))
	return buf, nil
}

func decodeRecord(data []byte) (*stream.FileMetadata, error) {
	path, rest, err := readString(data)
	if err != nil {
		return nil, fmt.Errorf("reading path: %w", err)
	}
	hash, rest, err := readString(rest)
	if err != nil {
		return nil, fmt.Errorf("reading hash: %w", err)
	}
	if len(rest) < 8 {
		return nil, fmt.Errorf("reading size: %w", errTruncated)
	}
	size := int64(binary.BigEndian.Uint64(rest))
	rest = rest[8:]
	mimeType, rest, err := readString(rest)
	if err != nil {
		return nil, fmt.Errorf("reading mime type: %w", err)
	}
	if len(rest) < 8 {
		return nil, fmt.Errorf("reading created time: %w", errTruncated)
	}
	createdAt := int64(binary.BigEndian.Uint64(rest))

	return &stream.FileMetadata{
		Path:      path,
		Hash:      stream.Hash(hash),
		Size:      size,
		MIMEType:  mimeType,
		CreatedAt: createdAt,
	}, nil
}

func appendString(b []byte, s string) []byte {
	b = binary.BigEndian.AppendUint16(b, uint16(len(s)))
	return append(b, s...)
}

func readString(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, errTruncated
	}
	n := int(binary.BigEndian.Uint16(b))
	b = b[2:]
	if len(b) < n {
		return "", nil, errTruncated
	}
	return string(b[:n]), b[n:], nil
}
