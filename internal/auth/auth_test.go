package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testKey, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	return ts
}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=4$"))

	assert.True(t, VerifyPassword(hash, "correct horse"))
	assert.False(t, VerifyPassword(hash, "wrong horse"))
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	a, err := HashPassword("same")
	require.NoError(t, err)
	b, err := HashPassword("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashPassword_Limits(t *testing.T) {
	_, err := HashPassword("")
	assert.ErrorIs(t, err, ErrEmptyPassword)

	_, err = HashPassword(strings.Repeat("x", maxPasswordLength+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestVerifyPassword_CustomParams(t *testing.T) {
	cheap := PasswordParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}
	hash, err := cheap.Hash("secret-pass")
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "secret-pass"))
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	for _, h := range []string{"", "plain", "$argon2i$v=19$m=1,t=1,p=1$AA$AA", "$argon2id$v=1$m=1,t=1,p=1$AA$AA"} {
		assert.False(t, VerifyPassword(h, "anything"), h)
	}
}

func TestAccessToken_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateAccessToken(Identity{UserID: "user-1", SessionID: "sess-1", Email: "a@example.com", EmailVerified: true})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))

	claims, err := ts.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.True(t, claims.EmailVerified)
	assert.NotEmpty(t, claims.TokenID)
}

func TestAccessToken_Expired(t *testing.T) {
	ts := newTestTokenService(t)
	issued := time.Now().Add(-time.Hour)
	ts.now = func() time.Time { return issued }

	token, err := ts.GenerateAccessToken(Identity{UserID: "user-1"})
	require.NoError(t, err)

	ts.now = time.Now
	_, err = ts.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestAccessToken_WrongKey(t *testing.T) {
	token, err := newTestTokenService(t).GenerateAccessToken(Identity{UserID: "user-1"})
	require.NoError(t, err)

	other, err := NewTokenService(strings.Repeat("f", keyHexSize), time.Minute, time.Hour)
	require.NoError(t, err)
	_, err = other.VerifyAccessToken(token)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestNewTokenService_BadKey(t *testing.T) {
	_, err := NewTokenService("short", time.Minute, time.Hour)
	require.Error(t, err)
	_, err = NewTokenService(strings.Repeat("z", keyHexSize), time.Minute, time.Hour)
	require.Error(t, err)
}

func TestRefreshToken(t *testing.T) {
	a, err := GenerateRefreshToken()
	require.NoError(t, err)
	b, err := GenerateRefreshToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, HashRefreshToken(a), HashRefreshToken(a))
	assert.NotEqual(t, HashRefreshToken(a), HashRefreshToken(b))
	assert.Len(t, HashRefreshToken(a), 64)
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	first, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, first, keyHexSize)

	second, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info, err := os.Stat(filepath.Join(dir, KeyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = NewTokenService(first, time.Minute, time.Hour)
	assert.NoError(t, err)
}

func TestLoadOrGenerateKey_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, KeyFileName), []byte("nope"), 0o600))

	_, err := LoadOrGenerateKey(dir)
	assert.Error(t, err)
}

func TestGenerateKeyHex(t *testing.T) {
	a, err := GenerateKeyHex()
	require.NoError(t, err)
	b, err := GenerateKeyHex()
	require.NoError(t, err)

	assert.Len(t, a, keyHexSize)
	assert.NotEqual(t, a, b)
}
