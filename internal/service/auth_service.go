package service

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/spec-kit/ops-ticket-bot/internal/auth"
	"github.com/spec-kit/ops-ticket-bot/internal/config"
	"github.com/spec-kit/ops-ticket-bot/pkg/util"
)

// AuthService authenticates the admin API operator.
type AuthService struct {
	username     string
	passwordHash string
	tokenMgr     *auth.TokenManager
	bcryptCost   int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config) *AuthService {
	return &AuthService{
		username:     cfg.Auth.AdminUsername,
		passwordHash: cfg.Auth.AdminPasswordHash,
		tokenMgr:     auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost:   cfg.Auth.BcryptCost,
	}
}

// Login checks the operator credentials and issues an admin token.
func (s *AuthService) Login(_ context.Context, username, password string) (string, time.Time, error) {
	if s.passwordHash == "" {
		return "", time.Time{}, util.NewUnauthorized("admin login is disabled")
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) != 1 {
		return "", time.Time{}, util.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(s.passwordHash, password); err != nil {
		return "", time.Time{}, util.NewUnauthorized("invalid credentials")
	}
	return s.tokenMgr.GenerateToken(username, auth.RoleAdmin)
}

// IssueToken signs a token without a password check, for the CLI.
func (s *AuthService) IssueToken(subject string, role auth.Role) (string, time.Time, error) {
	return s.tokenMgr.GenerateToken(subject, role)
}

// HashPassword hashes a password with the configured cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", util.NewValidationError("password must be at least 8 characters", nil)
	}
	return auth.HashPassword(password, s.bcryptCost)
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
