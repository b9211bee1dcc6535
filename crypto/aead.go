package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"

	"github.com/wish-project/wishd/wisherr"
)

const nonceSize = 12

// buildNonce constructs the 96-bit AES-GCM nonce from the message
// counter and timestamp: counter as 8 bytes big-endian, timestamp as
// 4 bytes big-endian. The counter is a uint32 zero-extended to 8
// bytes, so the upper 4 nonce bytes are always zero; nonce uniqueness
// rests on the counter never repeating within a session.
func buildNonce(counter, timestamp uint32) [nonceSize]byte {
	var nonce [nonceSize]byte
	binary.BigEndian.PutUint64(nonce[0:8], uint64(counter))
	binary.BigEndian.PutUint32(nonce[8:12], timestamp)
	return nonce
}

func newGCM(key SessionKey) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, wisherr.Wrap(wisherr.AeadAuthFailed, "init AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, wisherr.Wrap(wisherr.AeadAuthFailed, "init GCM", err)
	}
	return gcm, nil
}

// Seal encrypts message under the session key with AES-256-GCM,
// binding aad as associated data. Output is ciphertext||tag.
func Seal(key SessionKey, counter, timestamp uint32, message, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := buildNonce(counter, timestamp)
	return gcm.Seal(nil, nonce[:], message, aad), nil
}

// Open decrypts and authenticates a ciphertext produced by Seal.
// Authentication failure (wrong key, tampered ciphertext, or
// mismatched aad) returns wisherr.AeadAuthFailed.
func Open(key SessionKey, counter, timestamp uint32, ciphertext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := buildNonce(counter, timestamp)
	plaintext, err := gcm.Open(nil, nonce[:], ciphertext, aad)
	if err != nil {
		return nil, wisherr.Wrap(wisherr.AeadAuthFailed, "AEAD open failed", err)
	}
	return plaintext, nil
}
