package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/wish-project/wishd/wisherr"
)

// sessionKeySalt is the fixed HKDF salt for every wish protocol
// session. It is a domain separator, not a secret.
var sessionKeySalt = []byte("WishProtocol-v2.0-SessionKey")

const sessionKeyLen = 32

// SessionKey is a derived AES-256-GCM key shared by both ends of a
// session. Zero it as soon as the session ends.
type SessionKey [sessionKeyLen]byte

// Zero overwrites the key material.
func (k *SessionKey) Zero() {
	for i := range k {
		k[i] = 0
	}
}

// DeriveSessionKey runs HKDF-SHA256 over the ECDH shared secret to
// produce the session's AEAD key. info is always requesterID||
// responderID, in that fixed role order, regardless of which side is
// deriving the key — this is what makes the derivation symmetric.
func DeriveSessionKey(sharedSecret []byte, requesterID, responderID string) (SessionKey, error) {
	info := append([]byte(requesterID), []byte(responderID)...)
	reader := hkdf.New(sha256.New, sharedSecret, sessionKeySalt, info)

	var key SessionKey
	if _, err := io.ReadFull(reader, key[:]); err != nil {
		return SessionKey{}, wisherr.Wrap(wisherr.KeyAgreementFailed, "HKDF expansion failed", err)
	}
	return key, nil
}
