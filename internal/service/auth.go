package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/arasuji/arasuji-server/internal/auth"
	"github.com/arasuji/arasuji-server/internal/domain"
	domainerrors "github.com/arasuji/arasuji-server/internal/errors"
	"github.com/arasuji/arasuji-server/internal/id"
	"github.com/arasuji/arasuji-server/internal/normalize"
	"github.com/arasuji/arasuji-server/internal/store"
	"github.com/arasuji/arasuji-server/internal/validation"
)

// DefaultVerificationTTL is how long an email verification link stays valid.
const DefaultVerificationTTL = 24 * time.Hour

// SignUpRequest contains the sign-up form.
type SignUpRequest struct {
	Email           string `json:"email" validate:"required,email,max=128"`
	Password        string `json:"password" validate:"required,min=8,max=1024"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
	Username        string `json:"username" validate:"notblank,max=20"`
	AgreedToTerms   bool   `json:"agreedToTerms" validate:"required"`
}

// SignInRequest contains user credentials.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest contains the refresh token to rotate.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// AuthResponse contains tokens and the signed-in user's profile.
type AuthResponse struct {
	User          *domain.User `json:"user"`
	EmailVerified bool         `json:"emailVerified"`
	SessionResponse
}

// MeResponse describes the current user.
type MeResponse struct {
	UserID        string       `json:"userId"`
	Email         string       `json:"email"`
	EmailVerified bool         `json:"emailVerified"`
	Profile       *domain.User `json:"profile"`
}

// AuthStateChange is passed to auth-state listeners.
type AuthStateChange struct {
	UserID   string
	SignedIn bool
}

// AuthOptions configures an AuthService.
type AuthOptions struct {
	// PublicURL is the base of links sent by email.
	PublicURL       string
	VerificationTTL time.Duration
}

// AuthService handles accounts: sign-up, sign-in, token refresh, sign-out,
// and email verification. Session storage is delegated to SessionService.
type AuthService struct {
	store     store.Backend
	tokens    *auth.TokenService
	sessions  *SessionService
	mailer    Mailer
	validator *validation.Validator
	logger    *slog.Logger
	clock     Clock
	opts      AuthOptions

	mu        sync.RWMutex
	listeners map[int]func(AuthStateChange)
	nextID    int
}

// NewAuthService creates an authentication service. mailer may be nil, in
// which case verification links are only logged.
func NewAuthService(
	b store.Backend,
	tokens *auth.TokenService,
	sessions *SessionService,
	mailer Mailer,
	v *validation.Validator,
	opts AuthOptions,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if mailer == nil {
		mailer = NewLogMailer(logger)
	}
	if opts.VerificationTTL <= 0 {
		opts.VerificationTTL = DefaultVerificationTTL
	}
	return &AuthService{
		store:     b,
		tokens:    tokens,
		sessions:  sessions,
		mailer:    mailer,
		validator: v,
		logger:    logger,
		opts:      opts,
		listeners: make(map[int]func(AuthStateChange)),
	}
}

// OnAuthStateChanged registers fn to run after every sign-in and sign-out.
// The returned func removes it.
func (s *AuthService) OnAuthStateChanged(fn func(AuthStateChange)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.nextID
	s.nextID++
	s.listeners[key] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, key)
		s.mu.Unlock()
	}
}

func (s *AuthService) fireAuthState(change AuthStateChange) {
	s.mu.RLock()
	fns := make([]func(AuthStateChange), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}

// SignUp creates the account, its email index entry, and the public profile
// in one transaction, then opens a session.
func (s *AuthService) SignUp(ctx context.Context, req SignUpRequest, client ClientInfo) (*AuthResponse, error) {
	req.Email = normalize.Email(req.Email)
	req.Username = normalize.Trim(req.Username)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	now := s.clock.now()
	account := &domain.Account{
		ID:           userID,
		Email:        req.Email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		LastLoginAt:  now,
	}
	profile := &domain.User{
		ID:        userID,
		Username:  req.Username,
		Bio:       "",
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.store.RunTransaction(ctx, func(tx store.Tx) error {
		taken, err := store.ExistsTx(tx, store.AccountEmailPath(req.Email))
		if err != nil {
			return err
		}
		if taken {
			return domainerrors.AlreadyExists("email already in use")
		}
		if err := store.SetTx(tx, store.AccountPath(userID), account); err != nil {
			return err
		}
		if err := store.SetTx(tx, store.AccountEmailPath(req.Email), domain.EmailIndex{UserID: userID}); err != nil {
			return err
		}
		return store.SetTx(tx, store.UserPath(userID), profile)
	})
	if err != nil {
		return nil, storeError(err, "create account")
	}

	session, err := s.sessions.CreateSession(ctx, account, client)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("user signed up", "user_id", userID)
	s.fireAuthState(AuthStateChange{UserID: userID, SignedIn: true})
	return &AuthResponse{User: profile, EmailVerified: false, SessionResponse: *session}, nil
}

// SignIn authenticates with email and password and opens a session.
func (s *AuthService) SignIn(ctx context.Context, req SignInRequest, client ClientInfo) (*AuthResponse, error) {
	req.Email = normalize.Email(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	invalid := domainerrors.InvalidCredentials("invalid email or password")

	index, err := store.NewCollection[domain.EmailIndex](s.store, store.AccountEmailsCollection).Get(ctx, req.Email)
	if err != nil {
		if isNotFound(err) {
			// Same answer as a wrong password.
			return nil, invalid
		}
		return nil, storeError(err, "lookup account")
	}
	account, err := store.NewCollection[domain.Account](s.store, store.AccountsCollection).Get(ctx, index.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, invalid
		}
		return nil, storeError(err, "lookup account")
	}
	if !auth.VerifyPassword(account.PasswordHash, req.Password) {
		return nil, invalid
	}

	now := s.clock.now()
	err = s.store.RunTransaction(ctx, func(tx store.Tx) error {
		return store.PatchTx(tx, store.AccountPath(account.ID), map[string]any{"lastLoginAt": now})
	})
	if err != nil {
		s.logger.Warn("failed to update last login time", "user_id", account.ID, "error", err)
	}

	session, err := s.sessions.CreateSession(ctx, account, client)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	profile, err := s.profile(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed in", "user_id", account.ID)
	s.fireAuthState(AuthStateChange{UserID: account.ID, SignedIn: true})
	return &AuthResponse{User: profile, EmailVerified: account.EmailVerified, SessionResponse: *session}, nil
}

// Refresh rotates a refresh token and mints a new access token.
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest, client ClientInfo) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	session, account, err := s.sessions.RefreshSession(ctx, req.RefreshToken, client)
	if err != nil {
		return nil, err
	}
	profile, err := s.profile(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: profile, EmailVerified: account.EmailVerified, SessionResponse: *session}, nil
}

// SignOut revokes the session behind the caller's access token.
func (s *AuthService) SignOut(ctx context.Context, userID, sessionID string) error {
	if err := requireActor(userID); err != nil {
		return err
	}
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	s.logger.Info("user signed out", "user_id", userID)
	s.fireAuthState(AuthStateChange{UserID: userID, SignedIn: false})
	return nil
}

// Authenticate verifies an access token and checks that its session is
// still open.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*auth.AccessClaims, error) {
	if token == "" {
		return nil, domainerrors.Unauthorized("sign-in required")
	}
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, domainerrors.TokenExpired("access token expired")
		}
		return nil, domainerrors.Unauthorized("invalid access token").WithCause(err)
	}
	open, err := s.sessions.SessionExists(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, domainerrors.Unauthorized("session has ended")
	}
	return claims, nil
}

// Me returns the current user's account state and profile.
func (s *AuthService) Me(ctx context.Context, userID string) (*MeResponse, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	account, err := store.NewCollection[domain.Account](s.store, store.AccountsCollection).Get(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, domainerrors.NotFound("account not found")
		}
		return nil, storeError(err, "get account")
	}
	profile, err := s.profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &MeResponse{
		UserID:        userID,
		Email:         account.Email,
		EmailVerified: account.EmailVerified,
		Profile:       profile,
	}, nil
}

// SendEmailVerification mails userID a confirmation link. After confirming,
// the user is sent to continueURL, which must be on the public host; empty
// means the site root.
func (s *AuthService) SendEmailVerification(ctx context.Context, userID, continueURL string) error {
	if err := requireActor(userID); err != nil {
		return err
	}
	continueURL, err := s.continueURL(continueURL)
	if err != nil {
		return err
	}

	account, err := store.NewCollection[domain.Account](s.store, store.AccountsCollection).Get(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return domainerrors.NotFound("account not found")
		}
		return storeError(err, "get account")
	}
	if account.EmailVerified {
		return domainerrors.Conflict("email is already verified")
	}

	now := s.clock.now()
	verification := &domain.EmailVerification{
		Token:       id.NewToken(),
		UserID:      userID,
		Email:       account.Email,
		ContinueURL: continueURL,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.opts.VerificationTTL),
	}
	verifications := store.NewCollection[domain.EmailVerification](s.store, store.VerificationsCollection)
	if err := verifications.Set(ctx, verification.Token, verification); err != nil {
		return storeError(err, "save verification")
	}

	link := s.opts.PublicURL + "/verify-email?token=" + url.QueryEscape(verification.Token)
	if err := s.mailer.SendVerification(ctx, account.Email, link); err != nil {
		return domainerrors.Unavailable("failed to send verification email").WithCause(err)
	}

	s.logger.Info("verification email sent", "user_id", userID)
	return nil
}

// VerifyEmail consumes a verification token, marks the account verified, and
// returns the continuation URL.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (string, error) {
	invalid := domainerrors.Validation("invalid or expired verification link")
	if !id.Valid(token) {
		return "", invalid
	}

	var (
		verification *domain.EmailVerification
		expired      bool
	)
	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		var err error
		verification, err = store.GetTx[domain.EmailVerification](tx, store.VerificationPath(token))
		if err != nil {
			if isNotFound(err) {
				return invalid
			}
			return err
		}
		if !s.clock.now().Before(verification.ExpiresAt) {
			expired = true
			return invalid
		}
		if err := store.PatchTx(tx, store.AccountPath(verification.UserID), map[string]any{"emailVerified": true}); err != nil {
			return err
		}
		return tx.Delete(store.VerificationPath(token))
	})
	if err != nil {
		if expired {
			if derr := s.store.Delete(ctx, store.VerificationPath(token)); derr != nil {
				s.logger.Warn("failed to delete expired verification", "error", derr)
			}
		}
		return "", storeError(err, "verify email")
	}

	s.logger.Info("email verified", "user_id", verification.UserID)
	return verification.ContinueURL, nil
}

func (s *AuthService) profile(ctx context.Context, uid string) (*domain.User, error) {
	profile, err := store.NewCollection[domain.User](s.store, store.UsersCollection).Get(ctx, uid)
	if err != nil {
		if isNotFound(err) {
			return &domain.User{ID: uid}, nil
		}
		return nil, storeError(err, "get profile")
	}
	return profile, nil
}

// continueURL resolves a post-verification redirect against the public URL
// and rejects other hosts.
func (s *AuthService) continueURL(raw string) (string, error) {
	base, err := url.Parse(s.opts.PublicURL + "/")
	if err != nil {
		return "", fmt.Errorf("parse public URL: %w", err)
	}
	raw = normalize.Trim(raw)
	if raw == "" {
		return base.String(), nil
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", domainerrors.Validation("invalid continue URL")
	}
	resolved := base.ResolveReference(ref)
	if resolved.Host != base.Host || (resolved.Scheme != "http" && resolved.Scheme != "https") {
		return "", domainerrors.Validation("continue URL must stay on this site")
	}
	return resolved.String(), nil
}
