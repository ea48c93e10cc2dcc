package service

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-kit/ops-ticket-bot/internal/config"
	"github.com/spec-kit/ops-ticket-bot/internal/domain"
	"github.com/spec-kit/ops-ticket-bot/internal/events"
)

// Escalation posts the unclaimed-ticket notice into the ticket thread.
type Escalation struct {
	messenger  Messenger
	dispatcher events.Dispatcher
	routing    config.RoutingConfig
	now        func() time.Time
}

func NewEscalation(messenger Messenger, dispatcher events.Dispatcher, routing config.RoutingConfig) *Escalation {
	return &Escalation{messenger: messenger, dispatcher: dispatcher, routing: routing, now: time.Now}
}

// Escalate implements reminder.Escalator.
func (e *Escalation) Escalate(ctx context.Context, t *domain.Ticket) error {
	text := "Reminder: This ticket has not been picked up yet. Please respond within 5 minutes."
	if onCall := e.onCall(); onCall != "" {
		text = onCall + " " + text
	}
	if _, err := e.messenger.PostText(ctx, t.Primary.Channel, t.Primary.TS, text); err != nil {
		return fmt.Errorf("post escalation: %w", err)
	}
	if e.dispatcher != nil {
		_ = e.dispatcher.Publish(ctx, events.Event{
			Type:      events.EventTicketEscalated,
			TicketKey: t.Key,
			Timestamp: e.now(),
			Payload: events.TransitionPayload{
				From:   t.Status,
				To:     t.Status,
				Ticket: t,
			},
		})
	}
	return nil
}

func (e *Escalation) onCall() string {
	if e.routing.OnCall == "" {
		return ""
	}
	return mention(domain.Target(e.routing.OnCall, ""))
}
