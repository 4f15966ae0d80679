package domain

import "time"

// Account holds the credentials behind a user profile. It never leaves the server.
type Account struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"passwordHash"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	LastLoginAt   time.Time `json:"lastLoginAt,omitzero"`
}

// EmailIndex maps a normalized email address to its account.
type EmailIndex struct {
	UserID string `json:"userId"`
}

// Session is a refresh-token session. Only the token hash is stored.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	RefreshTokenHash string    `json:"refreshTokenHash"`
	UserAgent        string    `json:"userAgent,omitempty"`
	IPAddress        string    `json:"ipAddress,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
	LastSeenAt       time.Time `json:"lastSeenAt"`
}

// IsExpired reports whether the session has expired at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// EmailVerification is a pending email confirmation.
type EmailVerification struct {
	Token       string    `json:"token"`
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	ContinueURL string    `json:"continueUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
