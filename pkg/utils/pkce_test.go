package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCodeVerifier(t *testing.T) {
	verifier, err := GenerateCodeVerifier(64)
	require.NoError(t, err)
	assert.Len(t, verifier, 64)

	for _, c := range verifier {
		assert.True(t, strings.ContainsRune(verifierCharset, c), "unexpected character %q", c)
	}
}

func TestGenerateCodeVerifierRejectsShortLength(t *testing.T) {
	_, err := GenerateCodeVerifier(MinVerifierLength - 1)
	assert.Error(t, err)

	verifier, err := GenerateCodeVerifier(MinVerifierLength)
	require.NoError(t, err)
	assert.Len(t, verifier, MinVerifierLength)
}

func TestGenerateCodeVerifierIsRandom(t *testing.T) {
	a, err := GenerateCodeVerifier(64)
	require.NoError(t, err)
	b, err := GenerateCodeVerifier(64)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCodeChallenge(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	sum := sha256.Sum256([]byte(verifier))

	assert.Equal(t, hex.EncodeToString(sum[:]), CodeChallenge(verifier))
	assert.Len(t, CodeChallenge(verifier), 64)
}
