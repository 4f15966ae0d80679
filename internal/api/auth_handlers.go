package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/arasuji/arasuji-server/internal/color"
	"github.com/arasuji/arasuji-server/internal/domain"
	"github.com/arasuji/arasuji-server/internal/service"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "signUp",
		Method:        http.MethodPost,
		Path:          "/api/v1/auth/signup",
		Summary:       "Sign up",
		Description:   "Creates an account and its public profile, then opens a session",
		Tags:          []string{"Auth"},
		DefaultStatus: http.StatusCreated,
	}, s.handleSignUp)

	huma.Register(s.api, huma.Operation{
		OperationID: "signIn",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/login",
		Summary:     "Sign in",
		Description: "Authenticates with email and password",
		Tags:        []string{"Auth"},
	}, s.handleSignIn)

	huma.Register(s.api, huma.Operation{
		OperationID: "refreshTokens",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/refresh",
		Summary:     "Refresh tokens",
		Description: "Rotates the refresh token and issues a new access token",
		Tags:        []string{"Auth"},
	}, s.handleRefresh)

	huma.Register(s.api, huma.Operation{
		OperationID: "signOut",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/logout",
		Summary:     "Sign out",
		Description: "Ends the session behind the access token",
		Tags:        []string{"Auth"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSignOut)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMe",
		Method:      http.MethodGet,
		Path:        "/api/v1/auth/me",
		Summary:     "Current user",
		Description: "Returns the signed-in account and profile",
		Tags:        []string{"Auth"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetMe)

	huma.Register(s.api, huma.Operation{
		OperationID: "sendEmailVerification",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/verification",
		Summary:     "Send verification email",
		Description: "Mails a confirmation link to the signed-in user's address",
		Tags:        []string{"Auth"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSendVerification)

	huma.Register(s.api, huma.Operation{
		OperationID: "confirmEmailVerification",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/verification/confirm",
		Summary:     "Confirm email",
		Description: "Consumes a verification token and returns where to continue",
		Tags:        []string{"Auth"},
	}, s.handleConfirmVerification)
}

// === DTOs ===

// SignUpRequest is the request body for account creation.
type SignUpRequest struct {
	Email           string `json:"email,omitempty" doc:"Email address"`
	Password        string `json:"password,omitempty" doc:"Password, at least 8 characters"`
	PasswordConfirm string `json:"passwordConfirm,omitempty" doc:"Password repeated"`
	Username        string `json:"username,omitempty" doc:"Display name, up to 20 characters"`
	AgreedToTerms   bool   `json:"agreedToTerms,omitempty" doc:"Must be true"`
}

// SignUpInput wraps the sign-up request with headers for Huma.
type SignUpInput struct {
	Body          SignUpRequest
	UserAgent     string `header:"User-Agent"`
	XForwardedFor string `header:"X-Forwarded-For"`
	XRealIP       string `header:"X-Real-IP"`
}

// SignInRequest is the request body for sign-in.
type SignInRequest struct {
	Email    string `json:"email,omitempty" doc:"Email address"`
	Password string `json:"password,omitempty" doc:"Password"`
}

// SignInInput wraps the sign-in request with headers for Huma.
type SignInInput struct {
	Body          SignInRequest
	UserAgent     string `header:"User-Agent"`
	XForwardedFor string `header:"X-Forwarded-For"`
	XRealIP       string `header:"X-Real-IP"`
}

// RefreshRequest is the request body for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken,omitempty" doc:"Refresh token from the last sign-in or refresh"`
}

// RefreshInput wraps the refresh request with headers for Huma.
type RefreshInput struct {
	Body          RefreshRequest
	UserAgent     string `header:"User-Agent"`
	XForwardedFor string `header:"X-Forwarded-For"`
	XRealIP       string `header:"X-Real-IP"`
}

// AuthResponse contains tokens and the signed-in profile.
type AuthResponse struct {
	AccessToken   string      `json:"accessToken" doc:"PASETO access token"`
	RefreshToken  string      `json:"refreshToken" doc:"Opaque refresh token"`
	TokenType     string      `json:"tokenType" doc:"Always Bearer"`
	ExpiresIn     int         `json:"expiresIn" doc:"Seconds until the access token expires"`
	SessionID     string      `json:"sessionId" doc:"Session ID"`
	EmailVerified bool        `json:"emailVerified" doc:"Whether the email address is confirmed"`
	User          UserSummary `json:"user" doc:"Public profile"`
}

// AuthOutput wraps the auth response for Huma.
type AuthOutput struct {
	Body AuthResponse
}

// MeResponse describes the signed-in account.
type MeResponse struct {
	UserID        string      `json:"userId" doc:"User ID"`
	Email         string      `json:"email" doc:"Email address"`
	EmailVerified bool        `json:"emailVerified" doc:"Whether the email address is confirmed"`
	Profile       UserSummary `json:"profile" doc:"Public profile"`
}

// MeOutput wraps the me response for Huma.
type MeOutput struct {
	Body MeResponse
}

// SendVerificationRequest is the request body for a verification email.
type SendVerificationRequest struct {
	ContinueURL string `json:"continueUrl,omitempty" doc:"Where to send the user after confirming; must be on this site"`
}

// SendVerificationInput wraps the request for Huma.
type SendVerificationInput struct {
	Body SendVerificationRequest
}

// ConfirmVerificationRequest is the request body for confirming an email.
type ConfirmVerificationRequest struct {
	Token string `json:"token" doc:"Token from the verification link"`
}

// ConfirmVerificationInput wraps the request for Huma.
type ConfirmVerificationInput struct {
	Body ConfirmVerificationRequest
}

// ConfirmVerificationResponse tells the client where to go next.
type ConfirmVerificationResponse struct {
	ContinueURL string `json:"continueUrl" doc:"Continuation URL"`
}

// ConfirmVerificationOutput wraps the response for Huma.
type ConfirmVerificationOutput struct {
	Body ConfirmVerificationResponse
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message" doc:"Result message"`
}

// MessageOutput wraps a message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

// === Handlers ===

func (s *Server) handleSignUp(ctx context.Context, input *SignUpInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.SignUp(ctx, service.SignUpRequest{
		Email:           input.Body.Email,
		Password:        input.Body.Password,
		PasswordConfirm: input.Body.PasswordConfirm,
		Username:        input.Body.Username,
		AgreedToTerms:   input.Body.AgreedToTerms,
	}, clientInfo(input.UserAgent, input.XForwardedFor, input.XRealIP))
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: mapAuthResponse(resp)}, nil
}

func (s *Server) handleSignIn(ctx context.Context, input *SignInInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.SignIn(ctx, service.SignInRequest{
		Email:    input.Body.Email,
		Password: input.Body.Password,
	}, clientInfo(input.UserAgent, input.XForwardedFor, input.XRealIP))
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: mapAuthResponse(resp)}, nil
}

func (s *Server) handleRefresh(ctx context.Context, input *RefreshInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Refresh(ctx, service.RefreshRequest{
		RefreshToken: input.Body.RefreshToken,
	}, clientInfo(input.UserAgent, input.XForwardedFor, input.XRealIP))
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: mapAuthResponse(resp)}, nil
}

func (s *Server) handleSignOut(ctx context.Context, _ *struct{}) (*MessageOutput, error) {
	claims, err := getClaims(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Auth.SignOut(ctx, claims.UserID, claims.SessionID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Signed out"}}, nil
}

func (s *Server) handleGetMe(ctx context.Context, _ *struct{}) (*MeOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	me, err := s.services.Auth.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &MeOutput{Body: MeResponse{
		UserID:        me.UserID,
		Email:         me.Email,
		EmailVerified: me.EmailVerified,
		Profile:       mapUserSummary(me.Profile),
	}}, nil
}

func (s *Server) handleSendVerification(ctx context.Context, input *SendVerificationInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Auth.SendEmailVerification(ctx, userID, input.Body.ContinueURL); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Verification email sent"}}, nil
}

func (s *Server) handleConfirmVerification(ctx context.Context, input *ConfirmVerificationInput) (*ConfirmVerificationOutput, error) {
	continueURL, err := s.services.Auth.VerifyEmail(ctx, input.Body.Token)
	if err != nil {
		return nil, err
	}
	return &ConfirmVerificationOutput{Body: ConfirmVerificationResponse{ContinueURL: continueURL}}, nil
}

// === Helpers ===

func mapAuthResponse(resp *service.AuthResponse) AuthResponse {
	return AuthResponse{
		AccessToken:   resp.AccessToken,
		RefreshToken:  resp.RefreshToken,
		TokenType:     resp.TokenType,
		ExpiresIn:     resp.ExpiresIn,
		SessionID:     resp.SessionID,
		EmailVerified: resp.EmailVerified,
		User:          mapUserSummary(resp.User),
	}
}

func mapUserSummary(u *domain.User) UserSummary {
	if u == nil {
		return UserSummary{Username: domain.AnonymousName, AvatarColor: color.ForUser("")}
	}
	return UserSummary{
		ID:             u.ID,
		Username:       u.DisplayName(),
		Bio:            u.Bio,
		AvatarColor:    color.ForUser(u.ID),
		FollowerCount:  int64(u.FollowerCount),
		FollowingCount: int64(u.FollowingCount),
	}
}

func clientInfo(userAgent, xForwardedFor, xRealIP string) service.ClientInfo {
	return service.ClientInfo{
		UserAgent: userAgent,
		IPAddress: extractIP(xForwardedFor, xRealIP),
	}
}

// extractIP gets the client IP from headers.
func extractIP(xForwardedFor, xRealIP string) string {
	if xForwardedFor != "" {
		first, _, _ := strings.Cut(xForwardedFor, ",")
		return strings.TrimSpace(first)
	}
	return xRealIP
}
