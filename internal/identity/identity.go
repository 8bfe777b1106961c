// Package identity generates and persists a probe's encoded public key
// identity. Adapted from the teacher's internal/core/identity.go (random
// hex identity generation) and internal/network/mesh.go's
// SaveIdentity/LoadIdentity disk-persistence pattern — stripped of the
// libp2p private-key material neither has a home here (this spec's
// directory lookup is a stub, not a cryptographically authenticated
// peerstore; spec.md §1), and kept to the one thing a probe actually
// needs: a stable id across restarts.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// New generates a fresh random 16-byte hex-encoded identity.
func New() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

type persisted struct {
	EncodedPublicKey string `json:"encoded_public_key"`
}

// Load reads a previously saved identity from path. Returns an error the
// caller should treat as "no persisted identity yet" rather than fatal.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("decode identity file %s: %w", path, err)
	}
	return p.EncodedPublicKey, nil
}

// Save persists id to path as JSON, owner-readable only.
func Save(path, id string) error {
	data, err := json.Marshal(persisted{EncodedPublicKey: id})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadOrCreate loads the identity at path, generating and persisting a new
// one if none exists yet.
func LoadOrCreate(path string) (string, error) {
	if id, err := Load(path); err == nil {
		return id, nil
	}
	id := New()
	if err := Save(path, id); err != nil {
		return "", fmt.Errorf("persist new identity: %w", err)
	}
	return id, nil
}
