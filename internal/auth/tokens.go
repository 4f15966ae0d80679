package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json/v2"
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/arasuji/arasuji-server/internal/id"
)

const (
	tokenIssuer   = "arasuji-server"
	tokenAudience = "arasuji-client"

	keyBytesSize     = 32
	keyHexSize       = 64
	refreshTokenSize = 32
)

// ErrTokenExpired is returned by VerifyAccessToken for a well-formed token past its expiry.
var ErrTokenExpired = errors.New("token expired")

// TokenService mints and verifies access and refresh tokens.
type TokenService struct {
	key                  paseto.V4SymmetricKey
	accessTokenDuration  time.Duration
	refreshTokenDuration time.Duration
	now                  func() time.Time
}

// NewTokenService creates a token service from a 64-character hex key.
func NewTokenService(keyHex string, accessDuration, refreshDuration time.Duration) (*TokenService, error) {
	if len(keyHex) != keyHexSize {
		return nil, fmt.Errorf("PASETO v4 key must be %d hex characters, got %d", keyHexSize, len(keyHex))
	}
	raw, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid hex key: %w", err)
	}
	key, err := paseto.V4SymmetricKeyFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("create symmetric key: %w", err)
	}
	return &TokenService{
		key:                  key,
		accessTokenDuration:  accessDuration,
		refreshTokenDuration: refreshDuration,
		now:                  time.Now,
	}, nil
}

// AccessTokenDuration is the lifetime of minted access tokens.
func (s *TokenService) AccessTokenDuration() time.Duration { return s.accessTokenDuration }

// RefreshTokenDuration is the lifetime of a session's refresh token.
func (s *TokenService) RefreshTokenDuration() time.Duration { return s.refreshTokenDuration }

// GenerateAccessToken mints a v4.local token for ident.
func (s *TokenService) GenerateAccessToken(ident Identity) (string, error) {
	now := s.now()

	jti, err := id.Generate(id.PrefixToken)
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetSubject(ident.UserID)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(s.accessTokenDuration))
	token.SetJti(jti)

	//nolint:errcheck // Set only fails for unmarshalable values
	_ = token.Set("user_id", ident.UserID)
	//nolint:errcheck
	_ = token.Set("session_id", ident.SessionID)
	//nolint:errcheck
	_ = token.Set("email", ident.Email)
	//nolint:errcheck
	_ = token.Set("email_verified", ident.EmailVerified)

	return token.V4Encrypt(s.key, nil), nil
}

// VerifyAccessToken decrypts and validates an access token. A token that is
// authentic but past its expiry returns ErrTokenExpired.
func (s *TokenService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))

	token, err := parser.ParseV4Local(s.key, tokenString, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	var claims AccessClaims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}

	now := s.now()
	if now.Before(claims.NotBefore) {
		return nil, errors.New("invalid token: not yet valid")
	}
	if !now.Before(claims.Expiration) {
		return nil, ErrTokenExpired
	}
	return &claims, nil
}

// GenerateRefreshToken returns a random opaque refresh token. Only its hash
// is persisted.
func GenerateRefreshToken() (string, error) {
	b := make([]byte, refreshTokenSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashRefreshToken returns the at-rest form of a refresh token.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
