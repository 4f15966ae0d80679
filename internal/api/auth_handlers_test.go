package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignUp(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.api.Post("/api/v1/auth/signup", map[string]any{
		"email":           "Yuki@Example.com",
		"password":        "correct horse battery",
		"passwordConfirm": "correct horse battery",
		"username":        "  ゆき ",
		"agreedToTerms":   true,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	env := decode[AuthResponse](t, resp.Body.Bytes())
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.Data.AccessToken)
	assert.NotEmpty(t, env.Data.RefreshToken)
	assert.Equal(t, "Bearer", env.Data.TokenType)
	assert.Equal(t, 900, env.Data.ExpiresIn)
	assert.False(t, env.Data.EmailVerified)
	assert.Equal(t, "ゆき", env.Data.User.Username)
	assert.NotEmpty(t, env.Data.User.ID)

	// Same address in another case is a duplicate.
	resp = ts.api.Post("/api/v1/auth/signup", map[string]any{
		"email":           "yuki@example.com",
		"password":        "correct horse battery",
		"passwordConfirm": "correct horse battery",
		"username":        "別人",
		"agreedToTerms":   true,
	})
	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "ALREADY_EXISTS", decode[any](t, resp.Body.Bytes()).Code)
}

func TestSignUp_Validation(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.api.Post("/api/v1/auth/signup", map[string]any{
		"email":           "not-an-email",
		"password":        "short",
		"passwordConfirm": "different",
		"username":        "   ",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

	env := decode[any](t, resp.Body.Bytes())
	assert.False(t, env.Success)
	assert.Equal(t, "VALIDATION", env.Code)
	for _, field := range []string{"email", "password", "username", "agreedToTerms"} {
		assert.Contains(t, env.Details, field)
	}
}

func TestSignIn(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.signUp(t, "yuki@example.com", "ゆき")

	resp := ts.api.Post("/api/v1/auth/login", map[string]any{
		"email":    "yuki@example.com",
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	env := decode[AuthResponse](t, resp.Body.Bytes())
	assert.Equal(t, "ゆき", env.Data.User.Username)

	for _, body := range []map[string]any{
		{"email": "yuki@example.com", "password": "wrong password"},
		{"email": "nobody@example.com", "password": "correct horse battery"},
	} {
		resp = ts.api.Post("/api/v1/auth/login", body)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
		errEnv := decode[any](t, resp.Body.Bytes())
		assert.Equal(t, "INVALID_CREDENTIALS", errEnv.Code)
		assert.Equal(t, "invalid email or password", errEnv.Message)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.api.Post("/api/v1/auth/signup", map[string]any{
		"email":           "yuki@example.com",
		"password":        "correct horse battery",
		"passwordConfirm": "correct horse battery",
		"username":        "ゆき",
		"agreedToTerms":   true,
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	first := decode[AuthResponse](t, resp.Body.Bytes()).Data

	resp = ts.api.Post("/api/v1/auth/refresh", "X-Forwarded-For: 203.0.113.9, 10.0.0.1",
		map[string]any{"refreshToken": first.RefreshToken})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	second := decode[AuthResponse](t, resp.Body.Bytes()).Data
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, first.SessionID, second.SessionID)

	// The rotated-out token no longer works.
	resp = ts.api.Post("/api/v1/auth/refresh", map[string]any{"refreshToken": first.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "TOKEN_EXPIRED", decode[any](t, resp.Body.Bytes()).Code)
}

func TestSignOutEndsSession(t *testing.T) {
	ts := setupTestServer(t, nil)
	token, userID := ts.signUp(t, "yuki@example.com", "ゆき")

	resp := ts.api.Get("/api/v1/auth/me", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	me := decode[MeResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, userID, me.UserID)
	assert.Equal(t, "yuki@example.com", me.Email)
	assert.Equal(t, "ゆき", me.Profile.Username)

	resp = ts.api.Post("/api/v1/auth/logout", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/auth/me", bearer(token))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "session has ended", decode[any](t, resp.Body.Bytes()).Message)
}

func TestEmailVerification(t *testing.T) {
	ts := setupTestServer(t, nil)
	token, _ := ts.signUp(t, "yuki@example.com", "ゆき")

	resp := ts.api.Post("/api/v1/auth/verification", bearer(token),
		map[string]any{"continueUrl": "https://evil.example/"})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.api.Post("/api/v1/auth/verification", bearer(token),
		map[string]any{"continueUrl": "/mypage"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = ts.api.Post("/api/v1/auth/verification/confirm",
		map[string]any{"token": ts.mailer.lastToken(t)})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "https://arasuji.example/mypage",
		decode[ConfirmVerificationResponse](t, resp.Body.Bytes()).Data.ContinueURL)

	resp = ts.api.Get("/api/v1/auth/me", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, decode[MeResponse](t, resp.Body.Bytes()).Data.EmailVerified)

	resp = ts.api.Post("/api/v1/auth/verification", bearer(token), map[string]any{})
	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name          string
		xForwardedFor string
		xRealIP       string
		want          string
	}{
		{"forwarded chain", "203.0.113.9, 10.0.0.1", "10.0.0.2", "203.0.113.9"},
		{"single forwarded", "203.0.113.9", "", "203.0.113.9"},
		{"real ip only", "", "198.51.100.7", "198.51.100.7"},
		{"none", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractIP(tt.xForwardedFor, tt.xRealIP))
		})
	}
}
