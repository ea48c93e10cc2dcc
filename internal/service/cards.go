package service

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/correlation"
	"github.com/spec-kit/ops-ticket-bot/internal/domain"
	"github.com/spec-kit/ops-ticket-bot/pkg/util"
)

// maxPickerOptions is the platform limit on options in one menu.
const maxPickerOptions = 100

type cardRenderer struct {
	codec      *correlation.Codec
	loc        *time.Location
	budget     int
	categories []string
	logger     *zap.Logger
}

// mention renders a party the way the chat platform links it.
func mention(p domain.Party) string {
	if p.Kind == domain.PartyTeam {
		return fmt.Sprintf("<!subteam^%s>", p.ID)
	}
	return fmt.Sprintf("<@%s>", p.ID)
}

func mentionPtr(p *domain.Party) string {
	if p == nil {
		return "nobody"
	}
	return mention(*p)
}

func (r cardRenderer) stamp(t time.Time) string {
	return util.FormatTimestamp(t, r.loc)
}

func (r cardRenderer) short(s string) string {
	return correlation.Truncate(s, r.budget)
}

func categoryTitle(c domain.Category) string {
	switch c {
	case domain.CategorySubstitution:
		return "Substitution request"
	case domain.CategoryHelpdesk:
		return "Helpdesk ticket"
	case domain.CategoryEmergency:
		return ":rotating_light: Emergency alert"
	default:
		return "Ticket"
	}
}

func (r cardRenderer) fields(t *domain.Ticket) []Field {
	fields := []Field{
		{Label: "Ticket Number", Value: t.ID},
		{Label: "Reported by", Value: mention(t.Reporter)},
		{Label: "Reported at", Value: r.stamp(t.ReportedAt)},
	}
	if t.Description != "" {
		fields = append(fields, Field{Label: "Problem", Value: "`" + r.short(t.Description) + "`"})
	}
	if sub := t.Substitution; sub != nil {
		replacement := sub.Replacement
		if replacement == "" {
			replacement = "_still looking_"
		}
		fields = append(fields,
			Field{Label: "Teacher", Value: sub.Teacher},
			Field{Label: "Replacement", Value: replacement},
			Field{Label: "Grade / Slot", Value: strings.TrimSpace(sub.Grade + " / " + sub.Slot)},
			Field{Label: "Class", Value: strings.TrimSpace(sub.ClassDate + " " + sub.ClassTime)},
			Field{Label: "Reason", Value: r.short(sub.Reason)},
		)
		if sub.DirectLead != "" || sub.StemLead != "" {
			fields = append(fields, Field{Label: "Leads", Value: strings.Trim(sub.DirectLead+", "+sub.StemLead, ", ")})
		}
	}
	if len(t.Attachments) > 0 {
		fields = append(fields, Field{Label: "Attachments", Value: fmt.Sprintf("%d file(s), see thread", len(t.Attachments))})
	}
	if t.IssueCategory != "" {
		label := t.IssueCategory
		if t.CustomCategory {
			label += " (custom)"
		}
		fields = append(fields, Field{Label: "Category", Value: label})
	}
	return fields
}

func (r cardRenderer) progress(t *domain.Ticket) string {
	switch t.Status {
	case domain.TicketStatusAssigned:
		return ":technologist: Handled by " + mentionPtr(t.Assignee)
	case domain.TicketStatusHandedOff:
		return ":handshake: Handover to " + mentionPtr(t.Assignee)
	case domain.TicketStatusResolved:
		return fmt.Sprintf(":white_check_mark: Resolved by %s at `%s`", mentionPtr(t.ClosedBy), r.stamp(deref(t.ClosedAt)))
	case domain.TicketStatusRejected:
		return fmt.Sprintf(":x: Rejected by %s at `%s` due to `%s`", mentionPtr(t.ClosedBy), r.stamp(deref(t.ClosedAt)), t.RejectReason)
	default:
		return ":hourglass_flowing_sand: Waiting for a responder"
	}
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// primary renders the responder-facing ticket message. responders is only
// used while the ticket is unassigned.
func (r cardRenderer) primary(t *domain.Ticket, responders []domain.Party) Card {
	card := Card{
		Fallback: fmt.Sprintf("%s %s: %s", categoryTitle(t.Category), t.ID, t.Status),
		Header:   fmt.Sprintf("%s %s", categoryTitle(t.Category), t.ID),
		Intro:    fmt.Sprintf("We just received a ticket from %s at `%s`", mention(t.Reporter), r.stamp(t.ReportedAt)),
		Fields:   r.fields(t),
		Progress: r.progress(t),
	}
	if t.Status.Terminal() {
		return card
	}

	token, err := r.codec.Encode(t.Key)
	if err != nil {
		r.logger.Error("ticket controls dropped", zap.String("ticket_key", t.Key), zap.Error(err))
		return card
	}
	switch t.Status {
	case domain.TicketStatusUnassigned:
		if len(responders) > 0 {
			card.Picker = r.responderPicker(t.Key, responders)
		}
		if t.Category == domain.CategorySubstitution || t.Category == domain.CategoryHelpdesk {
			card.Buttons = append(card.Buttons, Button{ActionID: ActionClaim, Label: "Claim", Value: token, Style: StylePrimary})
		}
	case domain.TicketStatusAssigned:
		if t.Category.Categorizable() {
			card.Picker = r.categoryPicker(t.Key)
		}
		resolveLabel := "Resolve"
		if t.Category == domain.CategorySubstitution {
			resolveLabel = "Approve"
		}
		card.Buttons = append(card.Buttons, Button{ActionID: ActionResolve, Label: resolveLabel, Value: token, Style: StylePrimary})
		if t.Category.Editable() && t.Substitution != nil && t.Substitution.AwaitingReplacement {
			card.Buttons = append(card.Buttons, Button{ActionID: ActionEdit, Label: "Edit", Value: token})
		}
		if t.Category == domain.CategoryHelpdesk {
			card.Buttons = append(card.Buttons, Button{ActionID: ActionStartChat, Label: "Start chat", Value: token})
		}
	}
	card.Buttons = append(card.Buttons, Button{ActionID: ActionReject, Label: "Reject", Value: token, Style: StyleDanger})
	return card
}

func (r cardRenderer) responderPicker(key string, responders []domain.Party) *Picker {
	if len(responders) > maxPickerOptions {
		responders = responders[:maxPickerOptions]
	}
	opts := make([]Option, 0, len(responders))
	for _, p := range responders {
		if opt, ok := r.option(key, p.DisplayName(), p.ID); ok {
			opts = append(opts, opt)
		}
	}
	return &Picker{ActionID: ActionPickResponder, Prompt: "Please pick a person:", Placeholder: "Select a person...", Options: opts}
}

func (r cardRenderer) categoryPicker(key string) *Picker {
	opts := make([]Option, 0, len(r.categories))
	for _, c := range r.categories {
		if opt, ok := r.option(key, c, c); ok {
			opts = append(opts, opt)
		}
	}
	return &Picker{ActionID: ActionPickCategory, Prompt: "Please pick a category:", Placeholder: "Select a category...", Options: opts}
}

// option skips choices whose token would not fit the element payload.
func (r cardRenderer) option(key, label, value string) (Option, bool) {
	token, err := r.codec.Encode(key, value)
	if err != nil {
		r.logger.Warn("picker option skipped", zap.String("ticket_key", key), zap.String("value", value), zap.Error(err))
		return Option{}, false
	}
	return Option{Label: label, Value: token}, true
}

// mirror renders the broadcast copy of a ticket. It carries no controls.
func (r cardRenderer) mirror(t *domain.Ticket) Card {
	return Card{
		Fallback: fmt.Sprintf("%s %s: %s", categoryTitle(t.Category), t.ID, t.Status),
		Header:   fmt.Sprintf("%s %s", categoryTitle(t.Category), t.ID),
		Fields:   r.fields(t),
		Progress: "*Current Progress:*\n" + r.progress(t),
	}
}

// receipt renders the reporter's copy.
func (r cardRenderer) receipt(t *domain.Ticket) Card {
	return Card{
		Fallback: "Your ticket number: " + t.ID,
		Header:   "Your ticket number: " + t.ID,
		Fields: []Field{
			{Label: "Your Name", Value: t.Reporter.DisplayName()},
			{Label: "Reported at", Value: r.stamp(t.ReportedAt)},
			{Label: "Problem", Value: "`" + r.short(t.Description) + "`"},
		},
	}
}
