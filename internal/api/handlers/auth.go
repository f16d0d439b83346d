package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cloo-solutions/studybuddy/internal/api"
	"github.com/cloo-solutions/studybuddy/internal/api/middleware"
	"github.com/cloo-solutions/studybuddy/internal/domain"
)

type AuthService interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, *domain.Session, error)
	Logout(ctx context.Context, token string) error
}

type AuthHandler struct {
	svc          AuthService
	secureCookie bool
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// WithSecureCookie marks the session cookie Secure, for deployments behind TLS.
func (h *AuthHandler) WithSecureCookie(secure bool) *AuthHandler {
	h.secureCookie = secure
	return h
}

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Message  string `json:"message"`
	ID       string `json:"id"`
	Username string `json:"username"`
}

type LoginResponse struct {
	Message   string `json:"message"`
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	ExpiresAt string `json:"expires_at"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := api.Decode(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	user, err := h.svc.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, RegisterResponse{
		Message:  "Registered",
		ID:       user.ID,
		Username: user.Username,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := api.Decode(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	token, session, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	api.Success(w, http.StatusOK, LoginResponse{
		Message:   "Login success",
		Token:     token,
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := middleware.SessionToken(r); ok {
		if err := h.svc.Logout(r.Context(), token); err != nil {
			api.HandleError(w, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	api.Success(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
