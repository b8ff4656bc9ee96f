package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	s, err := GenerateSecret(SecretSize, EncodingBase64)
	require.NoError(t, err)
	require.Len(t, s, 64)
	raw, err := base64.RawURLEncoding.DecodeString(s)
	require.NoError(t, err)
	require.Len(t, raw, SecretSize)

	h, err := GenerateSecret(MinSecretSize, EncodingHex)
	require.NoError(t, err)
	require.Len(t, h, 2*MinSecretSize)
	_, err = hex.DecodeString(h)
	require.NoError(t, err)

	other, err := GenerateSecret(SecretSize, "")
	require.NoError(t, err)
	require.NotEqual(t, s, other)
}

func TestGenerateSecret_Errors(t *testing.T) {
	_, err := GenerateSecret(MinSecretSize-1, EncodingBase64)
	require.ErrorIs(t, err, ErrSecretSize)

	_, err = GenerateSecret(SecretSize, "rot13")
	require.ErrorIs(t, err, ErrUnknownEncoding)
}
