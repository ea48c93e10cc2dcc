package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/ops-ticket-bot/internal/auth"
	"github.com/spec-kit/ops-ticket-bot/internal/config"
	"github.com/spec-kit/ops-ticket-bot/pkg/util"
)

func TestAuthService_Login(t *testing.T) {
	hash, err := auth.HashPassword("correct horse", bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.Config{Auth: config.AuthConfig{
		JWTSecret: "secret", AccessTokenTTLMinutes: 5, BcryptCost: bcrypt.MinCost,
		AdminUsername: "admin", AdminPasswordHash: hash,
	}}
	svc := NewAuthService(cfg)

	token, _, err := svc.Login(context.Background(), "admin", "correct horse")
	require.NoError(t, err)
	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)

	_, _, err = svc.Login(context.Background(), "admin", "wrong")
	assert.True(t, util.HasCode(err, util.CodeUnauthorized))
	_, _, err = svc.Login(context.Background(), "root", "correct horse")
	assert.True(t, util.HasCode(err, util.CodeUnauthorized))

	cfg.Auth.AdminPasswordHash = ""
	_, _, err = NewAuthService(cfg).Login(context.Background(), "admin", "correct horse")
	assert.True(t, util.HasCode(err, util.CodeUnauthorized))
}

func TestAuthService_HashPassword(t *testing.T) {
	svc := NewAuthService(config.Config{Auth: config.AuthConfig{BcryptCost: bcrypt.MinCost}})
	_, err := svc.HashPassword("short")
	assert.True(t, util.HasCode(err, util.CodeValidation))

	hash, err := svc.HashPassword("long enough")
	require.NoError(t, err)
	assert.NoError(t, auth.ComparePassword(hash, "long enough"))
}
