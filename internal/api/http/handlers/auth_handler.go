package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ops-ticket-bot/internal/api/dto"
	"github.com/spec-kit/ops-ticket-bot/internal/service"
	"github.com/spec-kit/ops-ticket-bot/pkg/util"
)

// AuthHandler exposes the operator login.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return util.NewValidationError("username and password required", nil)
	}

	token, exp, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{Token: token, ExpiresAt: exp}})
}
