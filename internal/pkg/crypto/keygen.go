// Package crypto provides key generation utilities for the credential service.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// SecretSize is the default number of random bytes in a signing secret.
// 48 bytes encode to 64 URL-safe base64 characters.
const SecretSize = 48

// MinSecretSize matches the minimum signing secret length accepted by the
// token issuer.
const MinSecretSize = 32

// Secret encodings.
const (
	EncodingBase64 = "base64"
	EncodingHex    = "hex"
)

// Key generation errors
var (
	// ErrSecretSize indicates a requested size below MinSecretSize.
	ErrSecretSize = fmt.Errorf("secret size must be at least %d bytes", MinSecretSize)

	// ErrUnknownEncoding indicates an unsupported output encoding.
	ErrUnknownEncoding = errors.New("unknown encoding: must be base64 or hex")
)

// GenerateSecret returns size random bytes encoded for use as the session
// signing secret (auth.jwt_secret).
func GenerateSecret(size int, encoding string) (string, error) {
	if size < MinSecretSize {
		return "", ErrSecretSize
	}

	key := make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}

	switch strings.ToLower(encoding) {
	case "", EncodingBase64:
		return base64.RawURLEncoding.EncodeToString(key), nil
	case EncodingHex:
		return hex.EncodeToString(key), nil
	default:
		return "", ErrUnknownEncoding
	}
}
