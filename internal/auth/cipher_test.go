package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsascontentcorner/telegramdrive/internal/testutil"
)

func TestNewTokenCipher_KeySize(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33} {
		_, err := NewTokenCipher(make([]byte, size))
		assert.Error(t, err, "size %d", size)
	}

	c, err := NewTokenCipher(testutil.GenerateEncryptionKey())
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestTokenCipher_RoundTrip(t *testing.T) {
	c, err := NewTokenCipher(testutil.GenerateEncryptionKey())
	require.NoError(t, err)

	for _, plaintext := range []string{"ya29.a0AfH6SMB", "1//0gLq-refresh", "unicode ✓"} {
		sealed, err := c.Seal(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, sealed)

		opened, err := c.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	}
}

func TestTokenCipher_EmptyStaysEmpty(t *testing.T) {
	c, err := NewTokenCipher(testutil.GenerateEncryptionKey())
	require.NoError(t, err)

	sealed, err := c.Seal("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	opened, err := c.Open("")
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestTokenCipher_NonceUniqueness(t *testing.T) {
	c, err := NewTokenCipher(testutil.GenerateEncryptionKey())
	require.NoError(t, err)

	a, err := c.Seal("same")
	require.NoError(t, err)
	b, err := c.Seal("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestTokenCipher_OpenFailures(t *testing.T) {
	c, err := NewTokenCipher(testutil.GenerateEncryptionKey())
	require.NoError(t, err)
	other, err := NewTokenCipher(testutil.GenerateEncryptionKey())
	require.NoError(t, err)

	sealed, err := c.Seal("secret")
	require.NoError(t, err)

	_, err = c.Open("not base64!!")
	assert.ErrorContains(t, err, "failed to decode ciphertext")

	_, err = c.Open(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorContains(t, err, "ciphertext too short")

	_, err = other.Open(sealed)
	assert.ErrorContains(t, err, "failed to decrypt")
}
