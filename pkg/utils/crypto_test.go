package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := "act.example.access.token"

	encrypted, err := Encrypt([]byte(plaintext), testKey)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, encrypted)

	decrypted, err := Decrypt(encrypted, testKey)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	a, err := Encrypt([]byte("same input"), testKey)
	require.NoError(t, err)
	b, err := Encrypt([]byte("same input"), testKey)
	require.NoError(t, err)

	// Random nonce per call.
	assert.NotEqual(t, a, b)
}

func TestDecryptWrongKey(t *testing.T) {
	encrypted, err := Encrypt([]byte("secret"), testKey)
	require.NoError(t, err)

	otherKey := []byte("ffffffffffffffffffffffffffffffff")
	_, err = Decrypt(encrypted, otherKey)
	assert.Error(t, err)
}

func TestDecryptGarbage(t *testing.T) {
	_, err := Decrypt("not base64!!", testKey)
	assert.Error(t, err)

	_, err = Decrypt("c2hvcnQ=", testKey)
	assert.Error(t, err)
}
