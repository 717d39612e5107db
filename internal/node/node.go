package node

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"streamd/internal/stream"
)

// relayGrace bounds how long startup waits for the relay to answer before
// carrying on without one.
const relayGrace = 500 * time.Millisecond

// Node is the network-facing content layer: a stable identity, a blob
// store for shared content, an HTTP endpoint serving it, and ticket
// issuance tying the three together.
type Node struct {
	identity *Identity
	store    *BlobStore
	endpoint *Endpoint
	relayURL string
	logger   stream.Logger
	clock    stream.Clock
}

// Options configures a Node.
type Options struct {
	// DataDir holds the identity key and the blob store.
	DataDir string

	// Listen is the blob endpoint's address.
	Listen string

	// RelayURL is probed at startup; an unreachable relay downgrades the
	// node rather than failing it.
	RelayURL string

	Logger stream.Logger
	Clock  stream.Clock
}

// Start brings the node online: identity first, then the blob store, then
// the endpoint. A failed bind aborts startup; a silent relay does not.
func Start(opts Options) (*Node, error) {
	identity, err := LoadOrCreateIdentity(opts.DataDir)
	if err != nil {
		return nil, err
	}

	store, err := NewBlobStore(filepath.Join(opts.DataDir, "blobs"))
	if err != nil {
		return nil, err
	}

	endpoint, err := NewEndpoint(store, opts.Listen, opts.Logger)
	if err != nil {
		return nil, err
	}

	n := &Node{
		identity: identity,
		store:    store,
		endpoint: endpoint,
		relayURL: probeRelay(opts.RelayURL, opts.Logger),
		logger:   opts.Logger,
		clock:    opts.Clock,
	}

	endpoint.Serve()
	n.logger.Info("node online", "id", n.ID(), "addr", endpoint.Addr(), "relay", n.relayURL)
	return n, nil
}

// probeRelay confirms the relay answers within the grace period. Any
// response counts; a silent or unreachable relay yields "".
func probeRelay(url string, logger stream.Logger) string {
	if url == "" {
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), relayGrace)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		logger.Warn("relay address unusable", "relay", url, "error", err)
		return ""
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logger.Warn("relay not confirmed, continuing without one", "relay", url, "error", err)
		return ""
	}
	resp.Body.Close()
	return url
}

// ID returns the node's public identifier.
func (n *Node) ID() string {
	return n.identity.NodeID()
}

// RelayAddr returns the confirmed relay URL, or "" when none answered.
func (n *Node) RelayAddr() string {
	return n.relayURL
}

// Addr returns the blob endpoint's bound address.
func (n *Node) Addr() string {
	return n.endpoint.Addr()
}

// ImportReference registers a file's content under its hash by reference.
func (n *Node) ImportReference(ctx context.Context, path string) (stream.Hash, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", stream.ErrNetwork, err)
	}
	hash, err := n.store.ImportReference(path)
	if err != nil {
		return "", err
	}
	n.logger.Debug("imported reference", "path", path, "hash", hash)
	return hash, nil
}

// CreateCollection stores a manifest blob holding the raw digests of its
// members, in order, and returns the manifest's hash.
func (n *Node) CreateCollection(ctx context.Context, hashes []stream.Hash) (stream.Hash, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", stream.ErrNetwork, err)
	}

	manifest := make([]byte, 0, len(hashes)*stream.DigestSize)
	for _, h := range hashes {
		digest, err := h.Digest()
		if err != nil {
			return "", err
		}
		manifest = append(manifest, digest[:]...)
	}

	hash, err := n.store.PutBytes(manifest)
	if err != nil {
		return "", err
	}
	n.logger.Debug("collection stored", "hash", hash, "members", len(hashes))
	return hash, nil
}

// GenerateTicket captures the node's identity, relay, and the current time
// into a ticket for the given content. No I/O happens here.
func (n *Node) GenerateTicket(hash stream.Hash, name string) *stream.ShareTicket {
	return &stream.ShareTicket{
		NodeID:    n.identity.NodeID(),
		RelayURL:  n.relayURL,
		Hash:      hash,
		Name:      name,
		CreatedAt: n.clock.Now().Unix(),
	}
}

// Close stops the blob endpoint. The identity and store need no teardown.
func (n *Node) Close() error {
	return n.endpoint.Close()
}

// Compile-time check that Node implements the ContentNode interface.
var _ stream.ContentNode = (*Node)(nil)
