package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretRoundTrip(t *testing.T) {
	blob, err := EncryptSecret("super-secret-credential", "hunter2")
	require.NoError(t, err)

	got, err := DecryptSecret(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "super-secret-credential", got)

	_, err = DecryptSecret(blob, "wrong")
	assert.Error(t, err)
}

func TestLoadSecret_Resolution(t *testing.T) {
	// Raw secret takes precedence.
	got, err := LoadSecret(SecretConfig{RawSecret: "raw"})
	require.NoError(t, err)
	assert.Equal(t, "raw", got)

	// Encrypted file path.
	blob, err := EncryptSecret("from-file", "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "secret.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err = LoadSecret(SecretConfig{EncryptedPath: path, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)

	// Nothing configured.
	_, err = LoadSecret(SecretConfig{})
	assert.Error(t, err)
}

func TestHMACHeaders_Deterministic(t *testing.T) {
	auth := &HMACAuth{KeyID: "k1", Secret: "s1"}

	h1 := auth.HeadersAt("POST", "/receive", `{"amount":5}`, 1700000000)
	h2 := auth.HeadersAt("POST", "/receive", `{"amount":5}`, 1700000000)
	assert.Equal(t, h1, h2)
	assert.Equal(t, "k1", h1["X-Kek-Key-Id"])
	assert.Equal(t, "1700000000", h1["X-Kek-Timestamp"])
	assert.NotEmpty(t, h1["X-Kek-Signature"])

	// A different body changes the signature.
	h3 := auth.HeadersAt("POST", "/receive", `{"amount":6}`, 1700000000)
	assert.NotEqual(t, h1["X-Kek-Signature"], h3["X-Kek-Signature"])
}

func TestHMACVerify(t *testing.T) {
	auth := &HMACAuth{KeyID: "k1", Secret: "s1"}
	h := auth.HeadersAt("POST", "/receive", "body", 1700000000)

	assert.True(t, auth.Verify("POST", "/receive", "body", h["X-Kek-Timestamp"], h["X-Kek-Signature"]))
	assert.False(t, auth.Verify("POST", "/receive", "tampered", h["X-Kek-Timestamp"], h["X-Kek-Signature"]))
}

func TestHMACString_Redacts(t *testing.T) {
	auth := &HMACAuth{KeyID: "key-12345", Secret: "secret-67890"}
	s := auth.String()
	assert.NotContains(t, s, "secret-67890")
	assert.Contains(t, s, "****")
}
