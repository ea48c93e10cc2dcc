package handlers

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ops-ticket-bot/internal/api/dto"
	"github.com/spec-kit/ops-ticket-bot/internal/domain"
	"github.com/spec-kit/ops-ticket-bot/internal/registry"
	"github.com/spec-kit/ops-ticket-bot/internal/service"
	"github.com/spec-kit/ops-ticket-bot/pkg/util"
)

const maxListLimit = 500

// TicketsHandler exposes read-only registry views for operators.
type TicketsHandler struct {
	service *service.LifecycleService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(lifecycle *service.LifecycleService) *TicketsHandler {
	return &TicketsHandler{service: lifecycle}
}

// ListTickets GET /admin/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.List(c.UserContext(), registry.Filter{
		Statuses: query.Statuses,
		Category: query.Category,
		Limit:    query.Limit,
	})
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, ticketSummary(t))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /admin/tickets/:key.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	key, err := url.PathUnescape(c.Params("key"))
	if err != nil || key == "" {
		return util.NewValidationError("invalid ticket key", nil)
	}
	ticket, err := h.service.Get(c.UserContext(), key)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

func parseTicketQuery(c *fiber.Ctx) (dto.TicketListQuery, error) {
	var query dto.TicketListQuery
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			status := domain.TicketStatus(strings.TrimSpace(part))
			if !status.Valid() {
				return query, util.NewValidationError("unknown status", map[string]any{"status": status})
			}
			query.Statuses = append(query.Statuses, status)
		}
	}
	if category := c.Query("category"); category != "" {
		query.Category = domain.Category(category)
		if !query.Category.Valid() {
			return query, util.NewValidationError("unknown category", map[string]any{"category": category})
		}
	}
	query.Limit = parseInt(c.Query("limit"), 100)
	if query.Limit > maxListLimit {
		query.Limit = maxListLimit
	}
	return query, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func partyResponse(p *domain.Party) *dto.PartyResponse {
	if p == nil {
		return nil
	}
	return &dto.PartyResponse{ID: p.ID, Name: p.Name, Kind: p.Kind}
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:            ticket.ID,
		Key:           ticket.Key,
		Category:      ticket.Category,
		Status:        ticket.Status,
		Reporter:      *partyResponse(&ticket.Reporter),
		Assignee:      partyResponse(ticket.Assignee),
		IssueCategory: ticket.IssueCategory,
		ReportedAt:    ticket.ReportedAt,
		UpdatedAt:     ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	transcript := make([]dto.TranscriptLineResponse, 0, len(ticket.Transcript))
	for _, line := range ticket.Transcript {
		transcript = append(transcript, dto.TranscriptLineResponse{Author: line.Author, Text: line.Text, At: line.At})
	}
	attachments := ticket.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	var due *time.Time
	if !ticket.ReminderDue.IsZero() && ticket.Status == domain.TicketStatusUnassigned {
		d := ticket.ReminderDue
		due = &d
	}
	return dto.TicketDetailResponse{
		TicketSummary: ticketSummary(ticket),
		Description:   ticket.Description,
		Attachments:   attachments,
		Substitution:  ticket.Substitution,
		Transcript:    transcript,
		RejectReason:  ticket.RejectReason,
		ReminderDue:   due,
		ClosedBy:      partyResponse(ticket.ClosedBy),
		ClosedAt:      ticket.ClosedAt,
		Version:       ticket.Version,
	}
}
