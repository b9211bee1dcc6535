// Package keyring provides the external-collaborator store of known
// agents' long-lived identifying material. The wish protocol's
// handshake itself only ever uses fresh ephemeral keys (see package
// crypto); a Keyring is consulted outside the protocol proper, e.g.
// to decide whether an agent id seen in a KNOCK is one an operator
// has chosen to recognize.
package keyring

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/wish-project/wishd/wisherr"
)

// Entry records one known agent.
type Entry struct {
	AgentID   string `json:"agent_id"`
	PublicKey []byte `json:"public_key"`
	AddedAt   int64  `json:"added_at"`
}

// Keyring is a mutex-protected, JSON-file-backed set of Entries.
type Keyring struct {
	mu      sync.RWMutex
	path    string
	entries map[string]Entry
}

// Load reads a Keyring from path, or returns an empty Keyring if the
// file does not exist yet.
func Load(path string) (*Keyring, error) {
	k := &Keyring{path: path, entries: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return k, nil
		}
		return nil, wisherr.Wrap(wisherr.DecodeError, "read keyring file", err)
	}
	if len(data) == 0 {
		return k, nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, wisherr.Wrap(wisherr.DecodeError, "parse keyring file", err)
	}
	for _, e := range entries {
		k.entries[e.AgentID] = e
	}
	return k, nil
}

// Add records or replaces the public key for agentID and persists the
// keyring to disk.
func (k *Keyring) Add(agentID string, publicKey []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.entries[agentID] = Entry{
		AgentID:   agentID,
		PublicKey: publicKey,
		AddedAt:   time.Now().Unix(),
	}
	return k.save()
}

// Get returns the known public key for agentID, if any.
func (k *Keyring) Get(agentID string) ([]byte, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, ok := k.entries[agentID]
	if !ok {
		return nil, false
	}
	return e.PublicKey, true
}

// List returns every known entry.
func (k *Keyring) List() []Entry {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]Entry, 0, len(k.entries))
	for _, e := range k.entries {
		out = append(out, e)
	}
	return out
}

// save must be called with k.mu held.
func (k *Keyring) save() error {
	entries := make([]Entry, 0, len(k.entries))
	for _, e := range k.entries {
		entries = append(entries, e)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return wisherr.Wrap(wisherr.DecodeError, "encode keyring file", err)
	}
	if err := os.WriteFile(k.path, data, 0o600); err != nil {
		return wisherr.Wrap(wisherr.DecodeError, "write keyring file", err)
	}
	return nil
}
