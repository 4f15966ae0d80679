package auth

import "time"

// AccessClaims are the claims carried by a v4.local access token. The token
// is encrypted, so clients cannot read them.
type AccessClaims struct {
	UserID        string `json:"user_id"`
	SessionID     string `json:"session_id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`

	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// Identity is the subject an access token is minted for.
type Identity struct {
	UserID        string
	SessionID     string
	Email         string
	EmailVerified bool
}
