package node

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"streamd/internal/stream"
)

// KeyFileName is the identity seed file under the node's data directory.
const KeyFileName = "secret.key"

// Identity is the node's ed25519 keypair. The public key is the node's
// identifier on the network; the seed persists so the identifier survives
// restarts.
type Identity struct {
	priv ed25519.PrivateKey
}

// LoadOrCreateIdentity reads the hex seed at dir/secret.key, generating
// and persisting a fresh one on first run. The key file is created with
// owner-only permissions.
func LoadOrCreateIdentity(dir string) (*Identity, error) {
	path := filepath.Join(dir, KeyFileName)

	data, err := os.ReadFile(path)
	if err == nil {
		seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: key file %s is not hex encoded: %v", stream.ErrIO, path, err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("%w: key file %s holds %d bytes, want %d", stream.ErrIO, path, len(seed), ed25519.SeedSize)
		}
		return &Identity{priv: ed25519.NewKeyFromSeed(seed)}, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: reading key file %s: %v", stream.ErrIO, path, err)
	}

	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("%w: generating key seed: %v", stream.ErrIO, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating node directory: %v", stream.ErrIO, err)
	}
	encoded := hex.EncodeToString(seed) + "\n"
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("%w: writing key file %s: %v", stream.ErrIO, path, err)
	}

	return &Identity{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// NodeID returns the hex-encoded public key.
func (id *Identity) NodeID() string {
	return hex.EncodeToString(id.priv.Public().(ed25519.PublicKey))
}
