package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyExchangeAndSessionKeySymmetry(t *testing.T) {
	alice, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)
	bob, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)

	aliceShared, err := alice.SharedSecret(bob.PublicBytes())
	require.NoError(t, err)
	bobShared, err := bob.SharedSecret(alice.PublicBytes())
	require.NoError(t, err)

	aliceKey, err := DeriveSessionKey(aliceShared, "alice-12345678", "bob-87654321")
	require.NoError(t, err)
	bobKey, err := DeriveSessionKey(bobShared, "alice-12345678", "bob-87654321")
	require.NoError(t, err)

	assert.Equal(t, aliceKey, bobKey)
}

func TestSealOpenRoundTrip(t *testing.T) {
	alice, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)
	bob, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)

	aliceShared, err := alice.SharedSecret(bob.PublicBytes())
	require.NoError(t, err)
	key, err := DeriveSessionKey(aliceShared, "alice", "bob")
	require.NoError(t, err)

	message := []byte("Hello, Wish Protocol!")
	aad := []byte("\x02alicebob")

	ciphertext, err := Seal(key, 1, 1234567890, message, aad)
	require.NoError(t, err)

	plaintext, err := Open(key, 1, 1234567890, ciphertext, aad)
	require.NoError(t, err)
	assert.Equal(t, message, plaintext)
}

func TestOpenFailsWithWrongKey(t *testing.T) {
	alice, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)
	bob, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)
	charlie, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)

	aliceShared, err := alice.SharedSecret(charlie.PublicBytes())
	require.NoError(t, err)
	wrongKey, err := DeriveSessionKey(aliceShared, "alice", "charlie")
	require.NoError(t, err)

	bobShared, err := bob.SharedSecret(alice.PublicBytes())
	require.NoError(t, err)
	bobKey, err := DeriveSessionKey(bobShared, "alice", "bob")
	require.NoError(t, err)

	aad := []byte("\x02")
	ciphertext, err := Seal(wrongKey, 1, 100, []byte("Secret"), aad)
	require.NoError(t, err)

	_, err = Open(bobKey, 1, 100, ciphertext, aad)
	assert.Error(t, err)
}

func TestOpenFailsWithMismatchedAAD(t *testing.T) {
	alice, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)
	bob, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)

	shared, err := alice.SharedSecret(bob.PublicBytes())
	require.NoError(t, err)
	key, err := DeriveSessionKey(shared, "alice", "bob")
	require.NoError(t, err)

	ciphertext, err := Seal(key, 1, 100, []byte("Secret"), []byte("correct_aad"))
	require.NoError(t, err)

	_, err = Open(key, 1, 100, ciphertext, []byte("wrong_aad"))
	assert.Error(t, err)
}

func TestSessionKeyZero(t *testing.T) {
	var key SessionKey
	for i := range key {
		key[i] = 0xAB
	}
	key.Zero()
	for _, b := range key {
		assert.Equal(t, byte(0), b)
	}
}
