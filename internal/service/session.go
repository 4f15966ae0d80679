package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arasuji/arasuji-server/internal/auth"
	"github.com/arasuji/arasuji-server/internal/domain"
	domainerrors "github.com/arasuji/arasuji-server/internal/errors"
	"github.com/arasuji/arasuji-server/internal/id"
	"github.com/arasuji/arasuji-server/internal/store"
)

// DefaultSessionCleanupInterval is how often expired sessions are purged.
const DefaultSessionCleanupInterval = time.Hour

// SessionResponse contains session tokens and metadata.
type SessionResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"` // seconds until the access token expires
	SessionID    string `json:"sessionId"`
}

// ClientInfo describes the client opening or refreshing a session.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

// SessionService handles refresh-token sessions.
//
// A refresh token has the form "{sessionID}.{secret}"; only a hash of the
// whole token is stored.
type SessionService struct {
	store        store.Backend
	tokenService *auth.TokenService
	logger       *slog.Logger
	clock        Clock
}

// NewSessionService creates a session service.
func NewSessionService(b store.Backend, tokenService *auth.TokenService, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SessionService{store: b, tokenService: tokenService, logger: logger}
}

func (s *SessionService) sessions() *store.Collection[domain.Session] {
	return store.NewCollection[domain.Session](s.store, store.SessionsCollection)
}

// CreateSession opens a session for account and mints its first tokens.
func (s *SessionService) CreateSession(ctx context.Context, account *domain.Account, client ClientInfo) (*SessionResponse, error) {
	sessionID, err := id.Generate(id.PrefixSession)
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}
	refreshToken, err := newRefreshToken(sessionID)
	if err != nil {
		return nil, err
	}

	now := s.clock.now()
	session := &domain.Session{
		ID:               sessionID,
		UserID:           account.ID,
		RefreshTokenHash: auth.HashRefreshToken(refreshToken),
		UserAgent:        client.UserAgent,
		IPAddress:        client.IPAddress,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.tokenService.RefreshTokenDuration()),
		LastSeenAt:       now,
	}
	if err := s.sessions().Set(ctx, sessionID, session); err != nil {
		return nil, storeError(err, "save session")
	}

	return s.respond(account, session, refreshToken)
}

// RefreshSession rotates the refresh token of the session it names. The
// presented token stops working once this returns.
func (s *SessionService) RefreshSession(ctx context.Context, refreshToken string, client ClientInfo) (*SessionResponse, *domain.Account, error) {
	invalid := domainerrors.TokenExpired("invalid or expired refresh token")

	sessionID, _, ok := strings.Cut(refreshToken, ".")
	if !ok || !id.Valid(sessionID) {
		return nil, nil, invalid
	}

	var (
		account   *domain.Account
		session   *domain.Session
		nextToken string
		stale     bool
	)
	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		var err error
		session, err = store.GetTx[domain.Session](tx, store.SessionPath(sessionID))
		if err != nil {
			if isNotFound(err) {
				return invalid
			}
			return err
		}
		presented := auth.HashRefreshToken(refreshToken)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(session.RefreshTokenHash)) != 1 {
			return invalid
		}

		now := s.clock.now()
		if session.IsExpired(now) {
			stale = true
			return invalid
		}

		account, err = store.GetTx[domain.Account](tx, store.AccountPath(session.UserID))
		if err != nil {
			if isNotFound(err) {
				stale = true
				return domainerrors.NotFound("user not found")
			}
			return err
		}

		nextToken, err = newRefreshToken(sessionID)
		if err != nil {
			return err
		}
		session.RefreshTokenHash = auth.HashRefreshToken(nextToken)
		session.LastSeenAt = now
		if client.UserAgent != "" {
			session.UserAgent = client.UserAgent
		}
		if client.IPAddress != "" {
			session.IPAddress = client.IPAddress
		}
		return store.SetTx(tx, store.SessionPath(sessionID), session)
	})
	if err != nil {
		if stale {
			if derr := s.sessions().Delete(ctx, sessionID); derr != nil {
				s.logger.Warn("failed to delete stale session", "session_id", sessionID, "error", derr)
			}
		}
		return nil, nil, storeError(err, "refresh session")
	}

	resp, err := s.respond(account, session, nextToken)
	if err != nil {
		return nil, nil, err
	}
	return resp, account, nil
}

// DeleteSession ends a session.
func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) error {
	if !id.Valid(sessionID) {
		return nil
	}
	if err := s.sessions().Delete(ctx, sessionID); err != nil && !isNotFound(err) {
		return storeError(err, "delete session")
	}
	s.logger.Info("session deleted", "session_id", sessionID)
	return nil
}

// SessionExists reports whether sessionID is still open.
func (s *SessionService) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	if !id.Valid(sessionID) {
		return false, nil
	}
	ok, err := s.sessions().Exists(ctx, sessionID)
	if err != nil {
		return false, storeError(err, "check session")
	}
	return ok, nil
}

// DeleteExpiredSessions removes every expired session and returns the count.
func (s *SessionService) DeleteExpiredSessions(ctx context.Context) (int, error) {
	now := s.clock.now()
	expired, err := s.sessions().Query().
		Where(func(sess *domain.Session) bool { return sess.IsExpired(now) }).
		Run(ctx)
	if err != nil {
		return 0, storeError(err, "list sessions")
	}

	w := store.NewBatchWriter(s.store, s.logger)
	for _, sess := range expired {
		if err := w.Delete(ctx, store.SessionPath(sess.ID)); err != nil {
			return w.Committed(), storeError(err, "delete expired sessions")
		}
	}
	if err := w.Flush(ctx); err != nil {
		return w.Committed(), storeError(err, "delete expired sessions")
	}

	if n := w.Committed(); n > 0 {
		s.logger.Info("deleted expired sessions", "count", n)
	}
	return w.Committed(), nil
}

// RunCleanup purges expired sessions every interval until ctx is done.
func (s *SessionService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSessionCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.DeleteExpiredSessions(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("session cleanup failed", "error", err)
			}
		}
	}
}

func (s *SessionService) respond(account *domain.Account, session *domain.Session, refreshToken string) (*SessionResponse, error) {
	accessToken, err := s.tokenService.GenerateAccessToken(auth.Identity{
		UserID:        account.ID,
		SessionID:     session.ID,
		Email:         account.Email,
		EmailVerified: account.EmailVerified,
	})
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	return &SessionResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokenService.AccessTokenDuration().Seconds()),
		SessionID:    session.ID,
	}, nil
}

func newRefreshToken(sessionID string) (string, error) {
	secret, err := auth.GenerateRefreshToken()
	if err != nil {
		return "", err
	}
	return sessionID + "." + secret, nil
}
