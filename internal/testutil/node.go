package testutil

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"streamd/internal/stream"
)

// FakeNode implements the ContentNode interface against an in-memory
// filesystem. Content hashes match the real pipeline's; imports and
// collections are recorded for assertions.
type FakeNode struct {
	id    string
	relay string
	fs    *MockFilesystemManager
	clock stream.Clock

	// OnImport, when set, runs at the start of every ImportReference
	// call, before the import is recorded.
	OnImport func(path string)

	mu          sync.Mutex
	imports     []string
	collections map[stream.Hash][]byte
}

// NewFakeNode creates a node backed by the given mock filesystem.
func NewFakeNode(id, relay string, fsmgr *MockFilesystemManager, clock stream.Clock) *FakeNode {
	return &FakeNode{
		id:          id,
		relay:       relay,
		fs:          fsmgr,
		clock:       clock,
		collections: make(map[stream.Hash][]byte),
	}
}

func (n *FakeNode) ID() string        { return n.id }
func (n *FakeNode) RelayAddr() string { return n.relay }

func (n *FakeNode) ImportReference(_ context.Context, path string) (stream.Hash, error) {
	if n.OnImport != nil {
		n.OnImport(path)
	}

	content, ok := n.fs.Content(path)
	if !ok {
		return "", fmt.Errorf("%w: %s", stream.ErrFileNotFound, path)
	}
	hash := stream.HashFromDigest(sha256.Sum256(content))

	n.mu.Lock()
	n.imports = append(n.imports, path)
	n.mu.Unlock()
	return hash, nil
}

func (n *FakeNode) CreateCollection(_ context.Context, hashes []stream.Hash) (stream.Hash, error) {
	manifest := make([]byte, 0, len(hashes)*stream.DigestSize)
	for _, h := range hashes {
		digest, err := h.Digest()
		if err != nil {
			return "", err
		}
		manifest = append(manifest, digest[:]...)
	}

	hash := stream.HashFromDigest(sha256.Sum256(manifest))
	n.mu.Lock()
	n.collections[hash] = manifest
	n.mu.Unlock()
	return hash, nil
}

func (n *FakeNode) GenerateTicket(hash stream.Hash, name string) *stream.ShareTicket {
	return &stream.ShareTicket{
		NodeID:    n.id,
		RelayURL:  n.relay,
		Hash:      hash,
		Name:      name,
		CreatedAt: n.clock.Now().Unix(),
	}
}

// Imports returns every imported path, in call order.
func (n *FakeNode) Imports() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string{}, n.imports...)
}

// Collection returns a stored collection manifest.
func (n *FakeNode) Collection(hash stream.Hash) ([]byte, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	data, ok := n.collections[hash]
	return data, ok
}

// Compile-time check
var _ stream.ContentNode = (*FakeNode)(nil)
