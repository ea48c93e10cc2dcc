package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ops-ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ops-ticket-bot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Ops            *handlers.OpsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(auth.RoleViewer, auth.RoleAdmin))
	admin.Get("/tickets", cfg.Tickets.ListTickets)
	admin.Get("/tickets/:key", cfg.Tickets.GetTicket)
	admin.Get("/metrics", cfg.Ops.Metrics)
	admin.Post("/reminders/sweep", auth.RequireRole(auth.RoleAdmin), cfg.Ops.SweepReminders)
}
