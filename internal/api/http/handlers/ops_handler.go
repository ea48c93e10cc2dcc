package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/api/dto"
	"github.com/spec-kit/ops-ticket-bot/internal/auth"
	"github.com/spec-kit/ops-ticket-bot/internal/observability"
)

// Sweeper fires due reminders.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// OpsHandler serves metrics and maintenance actions.
type OpsHandler struct {
	metrics *observability.Metrics
	sweeper Sweeper
	logger  *zap.Logger
	now     func() time.Time
}

// NewOpsHandler constructs handler.
func NewOpsHandler(metrics *observability.Metrics, sweeper Sweeper, logger *zap.Logger) *OpsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpsHandler{metrics: metrics, sweeper: sweeper, logger: logger, now: time.Now}
}

// Metrics GET /admin/metrics.
func (h *OpsHandler) Metrics(c *fiber.Ctx) error {
	if h.metrics == nil {
		return c.JSON(fiber.Map{"data": observability.Snapshot{}})
	}
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}

// SweepReminders POST /admin/reminders/sweep.
func (h *OpsHandler) SweepReminders(c *fiber.Ctx) error {
	now := h.now()
	escalated, err := h.sweeper.Sweep(c.UserContext(), now)
	if err != nil {
		return err
	}
	subject := ""
	if p, ok := auth.PrincipalFromContext(c); ok {
		subject = p.Subject
	}
	h.logger.Info("manual reminder sweep", zap.String("actor", subject), zap.Int("escalated", escalated))
	return c.JSON(fiber.Map{"data": dto.SweepResponse{Escalated: escalated, SweptAt: now}})
}
