package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ops-ticket-bot/pkg/util"
)

// Role is the access level of an admin API caller.
type Role string

const (
	// RoleViewer may read tickets and metrics.
	RoleViewer Role = "viewer"
	// RoleAdmin may also trigger maintenance actions.
	RoleAdmin Role = "admin"
)

var ErrUnknownRole = errors.New("unknown role")

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleViewer || r == RoleAdmin
}

// RequireRole ensures the principal has one of the allowed roles.
func RequireRole(allowed ...Role) fiber.Handler {
	allowedSet := make(map[Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return util.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return util.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
