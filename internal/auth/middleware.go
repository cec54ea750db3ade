package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var errNoToken = errors.New("auth: missing bearer token")

// contextKey is an unexported type for context keys in this package, so no
// other package can read or shadow the values stored under them.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth enforces authentication on protected routes.
//
// It reads the access token from the Authorization header ("Bearer <jwt>"),
// validates it, and stores the user id in the request context. Missing or
// invalid tokens end the request with 401 before the handler runs.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := bearerUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext retrieves the authenticated user's id from the request
// context. The second return is false for anonymous requests.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id != 0
}

func bearerUserID(r *http.Request, tokens *TokenService) (int64, error) {
	header := r.Header.Get("Authorization")
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenStr == "" {
		return 0, errNoToken
	}
	return tokens.ValidateAccess(tokenStr)
}
