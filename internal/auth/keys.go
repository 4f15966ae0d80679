// Package auth implements password hashing, PASETO access tokens, and
// opaque refresh tokens.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// KeyFileName is the file under the data directory holding the token key.
const KeyFileName = "auth.key"

// LoadOrGenerateKey returns the hex-encoded PASETO v4 symmetric key stored in
// dataPath/auth.key, creating the file with a fresh key on first start.
func LoadOrGenerateKey(dataPath string) (string, error) {
	keyPath := filepath.Join(dataPath, KeyFileName)

	//#nosec G304 -- path is derived from the configured data directory
	raw, err := os.ReadFile(keyPath)
	switch {
	case err == nil:
		keyHex := strings.TrimSpace(string(raw))
		if len(keyHex) != keyHexSize {
			return "", fmt.Errorf("invalid auth key length: expected %d hex chars, got %d", keyHexSize, len(keyHex))
		}
		if _, err := hex.DecodeString(keyHex); err != nil {
			return "", fmt.Errorf("invalid auth key: %w", err)
		}
		return keyHex, nil
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("read auth key: %w", err)
	}

	keyHex, err := GenerateKeyHex()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dataPath, 0o700); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(keyHex), 0o600); err != nil {
		return "", fmt.Errorf("save auth key: %w", err)
	}
	return keyHex, nil
}

// GenerateKeyHex returns a fresh hex-encoded PASETO v4 symmetric key.
func GenerateKeyHex() (string, error) {
	key := make([]byte, keyBytesSize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate auth key: %w", err)
	}
	return hex.EncodeToString(key), nil
}
