package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/studybuddy/internal/api"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"

	// SessionCookieName is the cookie set by the login handler.
	SessionCookieName = "session"
)

type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (string, error)
}

// SessionAuth accepts a session token from the session cookie or an
// Authorization: Bearer header and stores the resolved user ID in context.
func SessionAuth(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := SessionToken(r)
			if !ok {
				api.Error(w, http.StatusUnauthorized, "login required")
				return
			}

			userID, err := validator.ValidateSession(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			setRequestUser(r.Context(), userID)
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionToken extracts the session token. The Authorization header wins
// over the cookie when both are present.
func SessionToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return "", false
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		return token, token != ""
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}
