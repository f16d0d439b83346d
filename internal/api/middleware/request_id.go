package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

const (
	RequestIDKey contextKey = "request_id"
	requestKey   contextKey = "request_state"
)

// requestState carries values that inner handlers resolve and outer
// middleware reports after the request completes.
type requestState struct {
	mu     sync.Mutex
	userID string
}

// RequestID injects a request ID into context and response headers.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = context.WithValue(ctx, requestKey, &requestState{})
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID from context.
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(RequestIDKey).(string)
	return requestID
}

func setRequestUser(ctx context.Context, userID string) {
	state, ok := ctx.Value(requestKey).(*requestState)
	if !ok {
		return
	}
	state.mu.Lock()
	state.userID = userID
	state.mu.Unlock()
}

// requestUser returns the authenticated user of the request, visible to
// middleware that wraps the auth middleware.
func requestUser(ctx context.Context) string {
	if userID := GetUserID(ctx); userID != "" {
		return userID
	}
	state, ok := ctx.Value(requestKey).(*requestState)
	if !ok {
		return ""
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.userID
}
