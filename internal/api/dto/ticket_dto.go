package dto

import (
	"time"

	"github.com/spec-kit/ops-ticket-bot/internal/domain"
)

// TicketListQuery captures query filters for the admin listing.
type TicketListQuery struct {
	Statuses []domain.TicketStatus
	Category domain.Category
	Limit    int
}

// PartyResponse identifies a user or team.
type PartyResponse struct {
	ID   string           `json:"id"`
	Name string           `json:"name,omitempty"`
	Kind domain.PartyKind `json:"kind"`
}

// TicketSummary response.
type TicketSummary struct {
	ID            string              `json:"id"`
	Key           string              `json:"key"`
	Category      domain.Category     `json:"category"`
	Status        domain.TicketStatus `json:"status"`
	Reporter      PartyResponse       `json:"reporter"`
	Assignee      *PartyResponse      `json:"assignee"`
	IssueCategory string              `json:"issue_category,omitempty"`
	ReportedAt    time.Time           `json:"reported_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description  string                      `json:"description"`
	Attachments  []string                    `json:"attachments"`
	Substitution *domain.SubstitutionDetails `json:"substitution,omitempty"`
	Transcript   []TranscriptLineResponse    `json:"transcript"`
	RejectReason string                      `json:"reject_reason,omitempty"`
	ReminderDue  *time.Time                  `json:"reminder_due"`
	ClosedBy     *PartyResponse              `json:"closed_by"`
	ClosedAt     *time.Time                  `json:"closed_at"`
	Version      int64                       `json:"version"`
}

// TranscriptLineResponse is one helpdesk thread message.
type TranscriptLineResponse struct {
	Author string    `json:"author"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// SweepResponse reports a manual reminder sweep.
type SweepResponse struct {
	Escalated int       `json:"escalated"`
	SweptAt   time.Time `json:"swept_at"`
}
