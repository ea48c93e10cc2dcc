package domain

import "time"

// PendingActionKind names the multi-step form a continuation belongs to.
type PendingActionKind string

const (
	ActionRejectReason     PendingActionKind = "reject_reason"
	ActionCustomCategory   PendingActionKind = "custom_category"
	ActionEditSubstitution PendingActionKind = "edit_substitution"
)

// PendingAction is a continuation record for a form opened from a ticket
// message. Forms carry only its ID; everything else lives here.
type PendingAction struct {
	ID        string            `cbor:"1,keyasint" json:"id"`
	Kind      PendingActionKind `cbor:"2,keyasint" json:"kind"`
	TicketKey string            `cbor:"3,keyasint" json:"ticket_key"`
	Actor     Party             `cbor:"4,keyasint" json:"actor"`
	Channel   string            `cbor:"5,keyasint" json:"channel"`
	CreatedAt time.Time         `cbor:"6,keyasint" json:"created_at"`
	ExpiresAt time.Time         `cbor:"7,keyasint" json:"expires_at"`
}

// Expired reports whether the continuation can no longer be used.
func (a *PendingAction) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}
