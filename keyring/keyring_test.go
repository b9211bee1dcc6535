package keyring

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	k, err := Load(filepath.Join(t.TempDir(), "keyring.json"))
	require.NoError(t, err)
	assert.Empty(t, k.List())
}

func TestAddGetPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring.json")
	k, err := Load(path)
	require.NoError(t, err)

	pub := make([]byte, 32)
	for i := range pub {
		pub[i] = byte(i)
	}
	require.NoError(t, k.Add("alice-12345678", pub))

	got, ok := k.Get("alice-12345678")
	require.True(t, ok)
	assert.Equal(t, pub, got)

	reloaded, err := Load(path)
	require.NoError(t, err)
	got2, ok := reloaded.Get("alice-12345678")
	require.True(t, ok)
	assert.Equal(t, pub, got2)
}

func TestGetUnknownAgent(t *testing.T) {
	k, err := Load(filepath.Join(t.TempDir(), "keyring.json"))
	require.NoError(t, err)
	_, ok := k.Get("nobody")
	assert.False(t, ok)
}
