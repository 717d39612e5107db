package stream

import "encoding/hex"

// DigestSize is the raw width of a content digest in bytes.
const DigestSize = 32

// Hash identifies content by the hex form of its SHA-256 digest. Equality
// and ordering follow the string value; the index stores whatever string it
// is given, so digest well-formedness is only enforced where raw bytes are
// needed (collection manifests, endpoint routes).
type Hash string

func (h Hash) String() string { return string(h) }

// Digest decodes the hash into its raw digest bytes. A hash that is not
// exactly 64 hex characters fails with ErrInvalidHash.
func (h Hash) Digest() ([DigestSize]byte, error) {
	var d [DigestSize]byte
	raw, err := hex.DecodeString(string(h))
	if err != nil {
		return d, invalidHashf("%q is not hex encoded", string(h))
	}
	if len(raw) != DigestSize {
		return d, invalidHashf("%q decodes to %d bytes, want %d", string(h), len(raw), DigestSize)
	}
	copy(d[:], raw)
	return d, nil
}

// HashFromDigest returns the hex form of a raw digest.
func HashFromDigest(d [DigestSize]byte) Hash {
	return Hash(hex.EncodeToString(d[:]))
}

// HashFromSum converts a digest slice, as returned by hash.Hash.Sum, into
// its hex form.
func HashFromSum(sum []byte) Hash {
	return Hash(hex.EncodeToString(sum))
}

// FileMetadata describes one indexed file. Path is the canonical absolute
// path and the primary key: the index holds at most one record per path.
type FileMetadata struct {
	Path      string
	Hash      Hash
	Size      int64
	MIMEType  string
	CreatedAt int64 // unix seconds
}

// ShareTicket carries everything a peer needs to locate and fetch one piece
// of content: who hosts it, how to reach them, and what to ask for. Tickets
// are exchanged out of band in their wire form and never persisted.
// An empty RelayURL means no relay was known when the ticket was issued.
type ShareTicket struct {
	NodeID    string `json:"node_id"`
	RelayURL  string `json:"relay_url"`
	Hash      Hash   `json:"hash"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}
