package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/cloo-solutions/studybuddy/internal/domain"
	"github.com/cloo-solutions/studybuddy/internal/pagination"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionTokenPrefix = "sb_"

	DefaultSessionTTL = 24 * time.Hour
	minPasswordLength = 6
)

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// UserPageResult holds one page of users
type UserPageResult struct {
	Items      []*domain.User
	NextCursor string
	HasMore    bool
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*UserPageResult, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByHash(ctx context.Context, hash string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuthService manages accounts and login sessions.
type AuthService struct {
	userRepo    UserRepository
	sessionRepo SessionRepository
	uuidGen     UUIDGenerator
	ttl         time.Duration
	now         func() time.Time
	bcryptCost  int
}

func NewAuthService(userRepo UserRepository, sessionRepo SessionRepository, uuidGen UUIDGenerator, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		uuidGen:     uuidGen,
		ttl:         ttl,
		now:         func() time.Time { return time.Now().UTC() },
		bcryptCost:  bcrypt.DefaultCost,
	}
}

// Register creates an account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if len(password) < minPasswordLength {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "password cannot be used", err)
	}

	user := &domain.User{
		ID:           s.uuidGen.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}

	if err := domain.ValidateUser(user); err != nil {
		return nil, err
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login checks the password and opens a session. The returned token is shown
// once; only its hash is stored.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *domain.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", nil, domain.ErrInvalidLogin
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, domain.ErrInvalidLogin
	}

	token, err := generateSessionToken()
	if err != nil {
		return "", nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate session token", err)
	}

	now := s.now()
	session := &domain.Session{
		ID:        s.uuidGen.NewString(),
		UserID:    user.ID,
		TokenHash: hashToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := domain.ValidateSession(session); err != nil {
		return "", nil, err
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return "", nil, err
	}

	return token, session, nil
}

// ValidateSession resolves a session token to its user ID.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (string, error) {
	if !IsValidSessionToken(token) {
		return "", domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetByHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return "", domain.ErrInvalidSession
		}
		return "", err
	}

	if session.IsExpired(s.now()) {
		return "", domain.ErrSessionExpired
	}

	return session.UserID, nil
}

// Logout ends the session identified by token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if !IsValidSessionToken(token) {
		return nil
	}

	session, err := s.sessionRepo.GetByHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return err
	}

	err = s.sessionRepo.Delete(ctx, session.ID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	return err
}

// PurgeExpiredSessions deletes sessions past their expiry.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessionRepo.DeleteExpired(ctx, s.now())
}

func (s *AuthService) ListUsers(ctx context.Context, cursor string, limit int) (*UserPageResult, error) {
	c, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid cursor")
	}
	return s.userRepo.ListWithCursor(ctx, c, pagination.ClampLimit(limit))
}

func generateSessionToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return sessionTokenPrefix + hex.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func IsValidSessionToken(token string) bool {
	if !strings.HasPrefix(token, sessionTokenPrefix) {
		return false
	}
	hexPart := token[len(sessionTokenPrefix):]
	if len(hexPart) != 64 {
		return false
	}
	for _, c := range hexPart {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
