package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/arasuji/arasuji-server/internal/auth"
	domainerrors "github.com/arasuji/arasuji-server/internal/errors"
	"github.com/arasuji/arasuji-server/internal/service"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

const (
	claimsKey  ctxKey = "claims"
	authErrKey ctxKey = "authErr"
)

// GetUserID returns the authenticated user ID from context.
// Returns the authentication failure, or 401, when there is none.
func GetUserID(ctx context.Context) (string, error) {
	claims, err := getClaims(ctx)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// viewerID returns the signed-in user or "" for anonymous requests.
func viewerID(ctx context.Context) string {
	if claims, ok := ctx.Value(claimsKey).(*auth.AccessClaims); ok {
		return claims.UserID
	}
	return ""
}

func getClaims(ctx context.Context) (*auth.AccessClaims, error) {
	if claims, ok := ctx.Value(claimsKey).(*auth.AccessClaims); ok {
		return claims, nil
	}
	if err, ok := ctx.Value(authErrKey).(error); ok {
		return nil, err
	}
	return nil, domainerrors.Unauthorized("sign-in required")
}

// authMiddleware returns a middleware that validates Bearer tokens and stores
// the claims in context. Requests without a valid token continue anonymously;
// the failure is kept so that handlers requiring sign-in can report it.
func authMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			claims, err := authService.Authenticate(ctx, strings.TrimSpace(token))
			if err != nil {
				next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, authErrKey, err)))
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, claimsKey, claims)))
		})
	}
}
