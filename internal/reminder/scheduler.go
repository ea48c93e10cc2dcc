package reminder

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/domain"
	"github.com/spec-kit/ops-ticket-bot/internal/registry"
)

// DefaultInterval is how often Run sweeps the queue.
const DefaultInterval = 5 * time.Second

// Escalator delivers the escalation notice for an unclaimed ticket.
type Escalator interface {
	Escalate(ctx context.Context, ticket *domain.Ticket) error
}

// Scheduler arms one deadline per ticket and escalates tickets that are
// still unassigned when their deadline passes.
type Scheduler struct {
	store     registry.Store
	queue     Queue
	escalator Escalator
	logger    *zap.Logger
	interval  time.Duration
	now       func() time.Time
}

func NewScheduler(store registry.Store, queue Queue, escalator Escalator, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:     store,
		queue:     queue,
		escalator: escalator,
		logger:    logger,
		interval:  interval,
		now:       time.Now,
	}
}

// Arm sets the reminder for key to fire after delay. Arming again replaces
// the previous deadline. Returns the deadline.
func (s *Scheduler) Arm(ctx context.Context, key string, delay time.Duration) (time.Time, error) {
	due := s.now().Add(delay)
	if err := s.queue.Schedule(ctx, key, due); err != nil {
		return time.Time{}, err
	}
	s.logger.Debug("reminder armed", zap.String("ticket_key", key), zap.Time("due", due))
	return due, nil
}

// Cancel drops the pending reminder for key, if any.
func (s *Scheduler) Cancel(ctx context.Context, key string) error {
	return s.queue.Cancel(ctx, key)
}

// Fire runs the check for one ticket. It escalates only when the ticket is
// still unassigned; a missing ticket counts as handled. Every call that
// finds the ticket unassigned sends a notice, so a duplicate call sends two.
func (s *Scheduler) Fire(ctx context.Context, key string) (bool, error) {
	ticket, err := s.store.Get(ctx, key)
	if errors.Is(err, registry.ErrNotFound) {
		s.logger.Debug("reminder for unknown ticket skipped", zap.String("ticket_key", key))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if ticket.Status != domain.TicketStatusUnassigned {
		return false, nil
	}
	if err := s.escalator.Escalate(ctx, ticket); err != nil {
		return false, err
	}
	s.logger.Info("ticket escalated",
		zap.String("ticket_key", key),
		zap.String("ticket_id", ticket.ID))
	return true, nil
}

// Sweep fires every reminder due at now and returns how many escalated.
// Errors on individual tickets are logged and do not stop the sweep.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) (int, error) {
	keys, err := s.queue.Due(ctx, now)
	if err != nil && len(keys) == 0 {
		return 0, err
	}
	if err != nil {
		s.logger.Warn("partial reminder sweep", zap.Error(err))
	}
	escalated := 0
	for _, key := range keys {
		ok, ferr := s.Fire(ctx, key)
		if ferr != nil {
			s.logger.Error("reminder escalation failed", zap.String("ticket_key", key), zap.Error(ferr))
			continue
		}
		if ok {
			escalated++
		}
	}
	return escalated, nil
}

// Run sweeps on a single ticker until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("reminder sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx, s.now()); err != nil {
				s.logger.Error("reminder sweep failed", zap.Error(err))
			}
		}
	}
}
