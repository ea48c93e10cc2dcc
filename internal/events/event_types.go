package events

import (
	"time"

	"github.com/spec-kit/ops-ticket-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened      EventType = "ticket_opened"
	EventTicketAssigned    EventType = "ticket_assigned"
	EventTicketHandedOff   EventType = "ticket_handed_off"
	EventTicketCategorized EventType = "ticket_categorized"
	EventTicketResolved    EventType = "ticket_resolved"
	EventTicketRejected    EventType = "ticket_rejected"
	EventTicketEdited      EventType = "ticket_edited"
	EventTicketEscalated   EventType = "ticket_escalated"
	EventTranscriptAdded   EventType = "ticket_transcript_added"
	EventChatMessage       EventType = "chat_message"
)

// LifecycleEvents lists every event a ticket transition can emit.
var LifecycleEvents = []EventType{
	EventTicketOpened,
	EventTicketAssigned,
	EventTicketHandedOff,
	EventTicketCategorized,
	EventTicketResolved,
	EventTicketRejected,
	EventTicketEdited,
	EventTicketEscalated,
	EventTranscriptAdded,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string       `json:"id"`
	Type      EventType    `json:"type"`
	TicketKey string       `json:"ticket_key,omitempty"`
	Actor     domain.Party `json:"actor"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   interface{}  `json:"payload"`
}

// TransitionPayload carries the ticket snapshot after a committed change.
type TransitionPayload struct {
	From   domain.TicketStatus `json:"from"`
	To     domain.TicketStatus `json:"to"`
	Ticket *domain.Ticket      `json:"ticket"`
	// Target is the party picked by the actor, if any.
	Target *domain.Party `json:"target,omitempty"`
}

// ChatMessagePayload is a raw inbound message.
type ChatMessagePayload struct {
	Channel string `json:"channel"`
	TS      string `json:"ts"`
	Text    string `json:"text"`
}
