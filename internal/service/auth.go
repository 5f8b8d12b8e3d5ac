// Package service implements the application services around the
// scoring pipeline: accounts, analysis lifecycle, and background
// execution.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/AshishSingh1503/HelixMind/internal/domain"
	"github.com/AshishSingh1503/HelixMind/internal/storage"
)

// AuthService handles registration, credential checks and bearer
// tokens (HS256 JWT).
type AuthService struct {
	users    storage.UserStore
	secret   []byte
	tokenTTL time.Duration
	log      *logrus.Logger
}

// NewAuthService creates an auth service over a user store.
func NewAuthService(users storage.UserStore, secret string, tokenTTL time.Duration, logger *logrus.Logger) *AuthService {
	return &AuthService{
		users:    users,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		log:      logger,
	}
}

// Register creates a new active account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, username, email, password, fullName string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return nil, domain.NewValidationError("username", "username is required", username)
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.NewValidationError("email", "a valid email is required", email)
	}
	if len(password) < 8 {
		return nil, domain.NewValidationError("password", "password must be at least 8 characters", nil)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &domain.User{
		ID:             uuid.New().String(),
		Username:       username,
		Email:          email,
		FullName:       strings.TrimSpace(fullName),
		HashedPassword: string(hashed),
		CreatedAt:      time.Now().UTC(),
		IsActive:       true,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("User registered")

	return user, nil
}

// Authenticate verifies a username/password pair.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		// Do not reveal whether the username exists.
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// IssueToken creates a signed bearer token for a user.
func (s *AuthService) IssueToken(user *domain.User) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   user.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a bearer token and resolves its user.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*domain.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return nil, fmt.Errorf("token missing subject claim")
	}

	user, err := s.users.GetUserByUsername(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("resolving token user: %w", err)
	}
	if !user.IsActive {
		return nil, domain.ErrForbidden
	}
	return user, nil
}
