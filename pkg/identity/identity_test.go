package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_identity")

	id, err := Generate()
	require.NoError(t, err)
	require.NoError(t, id.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, id.PublicKey, loaded.PublicKey)
	assert.Equal(t, id.PrivateKey, loaded.PrivateKey)
	assert.Equal(t, id.Hash(), loaded.Hash())
}

func TestGetOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids", "client_identity")

	first, err := GetOrCreate(path)
	require.NoError(t, err)

	// Second call must load the same identity, not mint a new one.
	second, err := GetOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, first.Hash(), second.Hash())
}

func TestSignVerify(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	msg := []byte("announce payload")
	sig := id.Sign(msg)
	assert.True(t, Verify(id.PublicKey, msg, sig))
	assert.False(t, Verify(id.PublicKey, []byte("tampered"), sig))
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity")
	require.NoError(t, os.WriteFile(path, []byte(`{"private":"!!","public":"!!"}`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
