package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"referral-tg-admin/internal/config"
	apperrors "referral-tg-admin/internal/errors"
	"referral-tg-admin/internal/models"
	"referral-tg-admin/internal/storage"
	"referral-tg-admin/internal/validation"
)

// Claims are the JWT claims issued to admin panel users.
// The registered ID claim carries the session token ID.
type Claims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService handles admin panel logins and sessions
type AuthService struct {
	store  storage.Store
	secret []byte
	ttl    time.Duration
	logger *logrus.Logger
	now    func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(store storage.Store, cfg config.AuthConfig, logger *logrus.Logger) *AuthService {
	return &AuthService{
		store:  store,
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.SessionTTL,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

// HashPassword hashes a password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CreateAdmin creates an admin panel account
func (s *AuthService) CreateAdmin(ctx context.Context, username, password string) (*models.AdminUser, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if err := validation.ValidateUsername(username); err != nil {
		return nil, &apperrors.ValidationError{Field: "username", Message: err.Error()}
	}
	if password == "" {
		return nil, &apperrors.ValidationError{Field: "password", Message: "password is required"}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	admin := &models.AdminUser{
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      true,
	}
	if err := s.store.CreateAdmin(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// EnsureAdmin creates the configured admin account if it does not exist yet
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	if password == "" {
		s.logger.Warn("ADMIN_PASSWORD is not set, skipping admin account creation")
		return nil
	}

	_, err := s.store.AdminByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	if _, err := s.CreateAdmin(ctx, username, password); err != nil && !errors.Is(err, apperrors.ErrAlreadyExists) {
		return fmt.Errorf("failed to create admin account: %w", err)
	}
	s.logger.Infof("Created admin account %s", username)
	return nil
}

// Login verifies the credentials and issues a signed token backed by a new session
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *models.AdminUser, error) {
	admin, err := s.store.AdminByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if errors.Is(err, apperrors.ErrNotFound) {
		return "", nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		s.logger.Warnf("Failed login attempt for %s", admin.Username)
		return "", nil, apperrors.ErrInvalidCredentials
	}

	now := s.now()
	session := &models.Session{
		UserID:    admin.ID,
		TokenID:   uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	claims := Claims{
		UserID:   admin.ID,
		Username: admin.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.TokenID,
			Subject:   strconv.FormatInt(admin.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Infof("Admin %s logged in", admin.Username)
	return token, admin, nil
}

// Authenticate verifies a token and returns the admin and session it belongs to
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.AdminUser, *models.Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, nil, apperrors.ErrSessionExpired
		}
		return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
	}
	if !parsed.Valid || claims.ID == "" {
		return nil, nil, apperrors.ErrUnauthorized
	}

	session, err := s.store.SessionByTokenID(ctx, claims.ID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil, apperrors.ErrUnauthorized
	}
	if err != nil {
		return nil, nil, err
	}

	if session.Expired(s.now()) {
		if err := s.store.DeleteSession(ctx, session.TokenID); err != nil {
			s.logger.Warnf("Failed to delete expired session: %v", err)
		}
		return nil, nil, apperrors.ErrSessionExpired
	}

	admin, err := s.store.AdminByID(ctx, session.UserID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil, apperrors.ErrUnauthorized
	}
	if err != nil {
		return nil, nil, err
	}

	return admin, session, nil
}

// Logout revokes the session behind the token
func (s *AuthService) Logout(ctx context.Context, token string) error {
	_, session, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	return s.store.DeleteSession(ctx, session.TokenID)
}
