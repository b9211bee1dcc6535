// Package crypto implements the wish protocol's crypto kernel (C2):
// ephemeral X25519 key agreement, HKDF-SHA256 session key derivation,
// and AES-256-GCM sealing of protocol messages.
package crypto

import (
	"crypto/ecdh"
	"crypto/rand"

	"github.com/wish-project/wishd/wisherr"
)

// EphemeralKeyPair holds one side's ephemeral X25519 key material for
// a single session. Zero drops the reference to the private key once
// the session key has been derived from it.
type EphemeralKeyPair struct {
	private *ecdh.PrivateKey
}

// GenerateEphemeralKeyPair creates a fresh X25519 key pair for use in
// exactly one handshake.
func GenerateEphemeralKeyPair() (*EphemeralKeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, wisherr.Wrap(wisherr.KeyAgreementFailed, "generate ephemeral key", err)
	}
	return &EphemeralKeyPair{private: priv}, nil
}

// PublicBytes returns the 32-byte X25519 public key to advertise to
// the peer.
func (k *EphemeralKeyPair) PublicBytes() []byte {
	return k.private.PublicKey().Bytes()
}

// Zero discards the private key material. Safe to call more than
// once.
func (k *EphemeralKeyPair) Zero() {
	k.private = nil
}

// SharedSecret runs X25519 Diffie-Hellman against a peer's 32-byte
// public key.
func (k *EphemeralKeyPair) SharedSecret(peerPublic []byte) ([]byte, error) {
	if k.private == nil {
		return nil, wisherr.New(wisherr.KeyAgreementFailed, "ephemeral key already zeroed")
	}
	peer, err := ecdh.X25519().NewPublicKey(peerPublic)
	if err != nil {
		return nil, wisherr.Wrap(wisherr.KeyAgreementFailed, "invalid peer public key", err)
	}
	secret, err := k.private.ECDH(peer)
	if err != nil {
		return nil, wisherr.Wrap(wisherr.KeyAgreementFailed, "ECDH failed", err)
	}
	return secret, nil
}
