package domain

import (
	"errors"
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusUnassigned TicketStatus = "unassigned"
	TicketStatusAssigned   TicketStatus = "assigned"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusRejected   TicketStatus = "rejected"
	TicketStatusHandedOff  TicketStatus = "handed_off"
)

// Terminal reports whether no further transitions are permitted.
func (s TicketStatus) Terminal() bool {
	switch s {
	case TicketStatusResolved, TicketStatusRejected, TicketStatusHandedOff:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusUnassigned, TicketStatusAssigned, TicketStatusResolved, TicketStatusRejected, TicketStatusHandedOff:
		return true
	}
	return false
}

// MessageRef locates a posted chat message.
type MessageRef struct {
	Channel string `cbor:"1,keyasint" json:"channel"`
	TS      string `cbor:"2,keyasint" json:"ts"`
}

// IsZero reports whether the reference was never set.
func (r MessageRef) IsZero() bool {
	return r.Channel == "" || r.TS == ""
}

// Key renders the reference as a registry key.
func (r MessageRef) Key() string {
	return r.Channel + ":" + r.TS
}

// TranscriptLine is one message of a helpdesk thread.
type TranscriptLine struct {
	Author string    `cbor:"1,keyasint" json:"author"`
	Text   string    `cbor:"2,keyasint" json:"text"`
	At     time.Time `cbor:"3,keyasint" json:"at"`
}

// Ticket is the unit of tracked work.
type Ticket struct {
	ID             string               `cbor:"1,keyasint" json:"id"`
	Key            string               `cbor:"2,keyasint" json:"key"`
	Category       Category             `cbor:"3,keyasint" json:"category"`
	Reporter       Party                `cbor:"4,keyasint" json:"reporter"`
	Description    string               `cbor:"5,keyasint" json:"description"`
	Attachments    []string             `cbor:"6,keyasint,omitempty" json:"attachments,omitempty"`
	Status         TicketStatus         `cbor:"7,keyasint" json:"status"`
	Assignee       *Party               `cbor:"8,keyasint,omitempty" json:"assignee,omitempty"`
	IssueCategory  string               `cbor:"9,keyasint,omitempty" json:"issue_category,omitempty"`
	CustomCategory bool                 `cbor:"10,keyasint,omitempty" json:"custom_category,omitempty"`
	Substitution   *SubstitutionDetails `cbor:"11,keyasint,omitempty" json:"substitution,omitempty"`
	Transcript     []TranscriptLine     `cbor:"12,keyasint,omitempty" json:"transcript,omitempty"`
	Primary        MessageRef           `cbor:"13,keyasint" json:"primary"`
	Mirror         MessageRef           `cbor:"14,keyasint" json:"mirror"`
	Receipt        MessageRef           `cbor:"15,keyasint" json:"receipt"`
	ReportedAt     time.Time            `cbor:"16,keyasint" json:"reported_at"`
	ReminderDue    time.Time            `cbor:"17,keyasint" json:"reminder_due"`
	RejectReason   string               `cbor:"18,keyasint,omitempty" json:"reject_reason,omitempty"`
	ClosedBy       *Party               `cbor:"19,keyasint,omitempty" json:"closed_by,omitempty"`
	ClosedAt       *time.Time           `cbor:"20,keyasint,omitempty" json:"closed_at,omitempty"`
	UpdatedAt      time.Time            `cbor:"21,keyasint" json:"updated_at"`
	Version        int64                `cbor:"22,keyasint" json:"version"`
}

// SubstitutionDetails carries the fields of a class substitution request.
type SubstitutionDetails struct {
	Teacher             string     `cbor:"1,keyasint" json:"teacher"`
	Replacement         string     `cbor:"2,keyasint,omitempty" json:"replacement,omitempty"`
	Grade               string     `cbor:"3,keyasint" json:"grade"`
	Slot                string     `cbor:"4,keyasint" json:"slot"`
	ClassDate           string     `cbor:"5,keyasint" json:"class_date"`
	ClassTime           string     `cbor:"6,keyasint" json:"class_time"`
	Reason              string     `cbor:"7,keyasint" json:"reason"`
	DirectLead          string     `cbor:"8,keyasint,omitempty" json:"direct_lead,omitempty"`
	StemLead            string     `cbor:"9,keyasint,omitempty" json:"stem_lead,omitempty"`
	AwaitingReplacement bool       `cbor:"10,keyasint" json:"awaiting_replacement"`
	EditedAt            *time.Time `cbor:"11,keyasint,omitempty" json:"edited_at,omitempty"`
}

var (
	ErrTicketID          = errors.New("ticket id required")
	ErrTicketKey         = errors.New("ticket key required")
	ErrAssigneeMismatch  = errors.New("assignee must be set iff status is not unassigned")
	ErrUnknownStatus     = errors.New("unknown ticket status")
	ErrMissingSubDetails = errors.New("substitution ticket without details")
)

// Validate checks the structural invariants of a ticket.
func (t *Ticket) Validate() error {
	if t.ID == "" {
		return ErrTicketID
	}
	if t.Key == "" {
		return ErrTicketKey
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, t.Status)
	}
	if (t.Status == TicketStatusUnassigned) != (t.Assignee == nil) {
		return ErrAssigneeMismatch
	}
	if t.Category == CategorySubstitution && t.Substitution == nil {
		return ErrMissingSubDetails
	}
	return nil
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	out := *t
	if t.Attachments != nil {
		out.Attachments = append([]string(nil), t.Attachments...)
	}
	if t.Transcript != nil {
		out.Transcript = append([]TranscriptLine(nil), t.Transcript...)
	}
	if t.Assignee != nil {
		a := *t.Assignee
		out.Assignee = &a
	}
	if t.ClosedBy != nil {
		c := *t.ClosedBy
		out.ClosedBy = &c
	}
	if t.ClosedAt != nil {
		at := *t.ClosedAt
		out.ClosedAt = &at
	}
	if t.Substitution != nil {
		s := *t.Substitution
		if s.EditedAt != nil {
			e := *s.EditedAt
			s.EditedAt = &e
		}
		out.Substitution = &s
	}
	return &out
}
