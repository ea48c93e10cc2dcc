package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/domain"
	"github.com/spec-kit/ops-ticket-bot/internal/events"
	"github.com/spec-kit/ops-ticket-bot/internal/repository"
	"github.com/spec-kit/ops-ticket-bot/pkg/util"
)

var errUnexpectedPayload = errors.New("unexpected event payload")

// Recorder writes ledger rows for ticket events and chat messages. It runs
// as a dispatcher subscriber, after the registry commit and the chat
// notifications of the transition it records.
type Recorder struct {
	repo       repository.SheetRepository
	dispatcher events.Dispatcher
	loc        *time.Location
	logger     *zap.Logger
}

// NewRecorder creates the recorder. loc is the display timezone for
// timestamps; nil means UTC.
func NewRecorder(repo repository.SheetRepository, dispatcher events.Dispatcher, loc *time.Location, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Recorder{repo: repo, dispatcher: dispatcher, loc: loc, logger: logger}
}

// RegisterHandlers subscribes to events.
func (r *Recorder) RegisterHandlers() {
	if r.dispatcher == nil {
		return
	}
	for _, typ := range events.LifecycleEvents {
		r.dispatcher.Subscribe(typ, r.handleTransition)
	}
	r.dispatcher.Subscribe(events.EventChatMessage, r.handleChatMessage)
}

// SheetFor returns the ledger sheet a ticket category is recorded in.
func SheetFor(c domain.Category) string {
	switch c {
	case domain.CategorySubstitution:
		return repository.SheetSubstitutions
	case domain.CategoryEmergency:
		return repository.SheetEmergencies
	case domain.CategoryHelpdesk:
		return repository.SheetHelpdesk
	default:
		return repository.SheetTickets
	}
}

func (r *Recorder) stamp(t time.Time) string {
	return util.FormatTimestamp(t, r.loc)
}

func (r *Recorder) handleTransition(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TransitionPayload)
	if !ok || payload.Ticket == nil {
		return fmt.Errorf("%w for %s", errUnexpectedPayload, event.Type)
	}
	t := payload.Ticket
	sheet := SheetFor(t.Category)

	if event.Type == events.EventTicketOpened {
		row, err := r.openedRow(t)
		if err != nil {
			return err
		}
		return r.repo.Append(ctx, sheet, row)
	}

	updates := r.transitionRow(event, payload)
	if len(updates) == 0 {
		return nil
	}
	if err := r.update(ctx, sheet, t.ID, updates); err != nil {
		r.logger.Warn("ledger update failed",
			zap.String("ticket_id", t.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	return nil
}

func (r *Recorder) openedRow(t *domain.Ticket) (repository.Row, error) {
	created := r.stamp(t.ReportedAt)
	switch t.Category {
	case domain.CategorySubstitution:
		sub := t.Substitution
		if sub == nil {
			sub = &domain.SubstitutionDetails{}
		}
		return repository.Row{
			"created_at":        created,
			"piket_id":          t.ID,
			"ticket_key":        t.Key,
			"requested_by":      t.Reporter.DisplayName(),
			"teacher_requested": sub.Teacher,
			"teacher_replaces":  sub.Replacement,
			"grade":             sub.Grade,
			"slot_name":         sub.Slot,
			"class_date":        sub.ClassDate,
			"class_time":        sub.ClassTime,
			"reason":            sub.Reason,
			"direct_lead":       sub.DirectLead,
			"stem_lead":         sub.StemLead,
			"status":            string(t.Status),
		}, nil
	case domain.CategoryEmergency:
		return repository.Row{
			"created_at":  created,
			"alert_id":    t.ID,
			"ticket_key":  t.Key,
			"user_id":     t.Reporter.ID,
			"user_name":   t.Reporter.DisplayName(),
			"description": t.Description,
		}, nil
	case domain.CategoryHelpdesk:
		attachments, err := encodeAttachments(t.Attachments)
		if err != nil {
			return nil, err
		}
		return repository.Row{
			"created_at":   created,
			"ticket_id":    t.ID,
			"ticket_key":   t.Key,
			"user_id":      t.Reporter.ID,
			"user_name":    t.Reporter.DisplayName(),
			"description":  t.Description,
			"attachments":  attachments,
			"chat_history": transcript(t.Transcript),
		}, nil
	default:
		return repository.Row{
			"created_at":     created,
			"ticket_id":      t.ID,
			"ticket_key":     t.Key,
			"user_ids":       t.Reporter.ID,
			"user_names":     t.Reporter.DisplayName(),
			"user_issue":     t.Description,
			"category_issue": t.IssueCategory,
		}, nil
	}
}

func (r *Recorder) transitionRow(event events.Event, p events.TransitionPayload) repository.Row {
	t := p.Ticket
	at := r.stamp(event.Timestamp)
	actor := event.Actor.DisplayName()
	substitution := t.Category == domain.CategorySubstitution

	switch event.Type {
	case events.EventTicketAssigned:
		if substitution {
			return repository.Row{"status": string(t.Status)}
		}
		target := event.Actor
		if p.Target != nil {
			target = *p.Target
		}
		row := repository.Row{"handled_by": target.DisplayName(), "handled_at": at}
		if target.ID != event.Actor.ID {
			row["assigned_by"] = actor
		}
		return row
	case events.EventTicketHandedOff:
		if substitution {
			return repository.Row{"status": string(t.Status)}
		}
		return repository.Row{"handed_over_by": actor, "handed_over_at": at}
	case events.EventTicketCategorized:
		return repository.Row{"category_issue": t.IssueCategory}
	case events.EventTicketResolved:
		if substitution {
			return repository.Row{"approved_by": actor, "approved_at": at, "status": "approved"}
		}
		return repository.Row{"resolved_by": actor, "resolved_at": at}
	case events.EventTicketRejected:
		row := repository.Row{"rejected_by": actor, "rejected_at": at, "reject_reason": t.RejectReason}
		if substitution {
			row["status"] = string(t.Status)
		}
		return row
	case events.EventTicketEdited:
		sub := t.Substitution
		if sub == nil {
			return nil
		}
		edited := at
		if sub.EditedAt != nil {
			edited = r.stamp(*sub.EditedAt)
		}
		return repository.Row{
			"teacher_replaces": sub.Replacement,
			"grade":            sub.Grade,
			"slot_name":        sub.Slot,
			"class_date":       sub.ClassDate,
			"class_time":       sub.ClassTime,
			"reason":           sub.Reason,
			"edited_at":        edited,
		}
	case events.EventTicketEscalated:
		return repository.Row{"escalated_at": at}
	case events.EventTranscriptAdded:
		return repository.Row{"chat_history": transcript(t.Transcript)}
	}
	return nil
}

// update writes only the columns the sheet has.
func (r *Recorder) update(ctx context.Context, sheet, key string, updates repository.Row) error {
	def, err := repository.LookupSheet(sheet)
	if err != nil {
		return err
	}
	row := repository.Row{}
	for col, v := range updates {
		if def.HasColumn(col) {
			row[col] = v
		}
	}
	if len(row) == 0 {
		return nil
	}
	return r.repo.UpdateByKey(ctx, sheet, key, row)
}

func (r *Recorder) handleChatMessage(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ChatMessagePayload)
	if !ok {
		return fmt.Errorf("%w for %s", errUnexpectedPayload, event.Type)
	}
	return r.repo.Append(ctx, repository.SheetChatLog, repository.Row{
		"created_at":  r.stamp(event.Timestamp),
		"message_key": domain.MessageRef{Channel: payload.Channel, TS: payload.TS}.Key(),
		"user_id":     event.Actor.ID,
		"user_name":   event.Actor.Name,
		"channel":     payload.Channel,
		"text":        payload.Text,
	})
}

func encodeAttachments(links []string) (string, error) {
	if len(links) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(links)
	if err != nil {
		return "", fmt.Errorf("encode attachments: %w", err)
	}
	return string(data), nil
}

func transcript(lines []domain.TranscriptLine) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Author + ": " + l.Text
	}
	return strings.Join(out, "\n")
}
