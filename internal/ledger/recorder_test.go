package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ops-ticket-bot/internal/domain"
	"github.com/spec-kit/ops-ticket-bot/internal/events"
	"github.com/spec-kit/ops-ticket-bot/internal/repository"
)

var (
	wib      = time.FixedZone("WIB", 7*60*60)
	reported = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	reporter = domain.Individual("U0REPORTER", "Rina")
	xavier   = domain.Individual("U0X", "Xavier")
	yuni     = domain.Individual("U0Y", "Yuni")
)

func newRecorder(t *testing.T) (repository.SheetRepository, events.Dispatcher) {
	t.Helper()
	repo := repository.NewMemorySheetRepository()
	dispatcher := events.NewInMemoryDispatcher(nil)
	NewRecorder(repo, dispatcher, wib, nil).RegisterHandlers()
	return repo, dispatcher
}

func publish(t *testing.T, d events.Dispatcher, typ events.EventType, actor domain.Party, at time.Time, ticket *domain.Ticket, target *domain.Party) {
	t.Helper()
	require.NoError(t, d.Publish(context.Background(), events.Event{
		Type:      typ,
		TicketKey: ticket.Key,
		Actor:     actor,
		Timestamp: at,
		Payload:   events.TransitionPayload{To: ticket.Status, Ticket: ticket, Target: target},
	}))
}

func TestRecorder_GeneralTicketRow(t *testing.T) {
	repo, d := newRecorder(t)
	ticket := &domain.Ticket{
		ID: "LIVEOPS-1a2b3c4d", Key: "C0OPS:1714550000.000001", Category: domain.CategoryGeneral,
		Reporter: reporter, Description: "printer is broken", Status: domain.TicketStatusUnassigned,
		ReportedAt: reported,
	}
	publish(t, d, events.EventTicketOpened, reporter, reported, ticket, nil)

	row, err := repo.Get(context.Background(), repository.SheetTickets, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01 16:00:00", row["created_at"])
	assert.Equal(t, "U0REPORTER", row["user_ids"])
	assert.Equal(t, "Rina", row["user_names"])
	assert.Equal(t, "printer is broken", row["user_issue"])
	assert.Empty(t, row["handled_by"])

	claimed := ticket.Clone()
	claimed.Status = domain.TicketStatusAssigned
	claimed.Assignee = &yuni
	publish(t, d, events.EventTicketAssigned, xavier, reported.Add(2*time.Minute), claimed, &yuni)

	claimed.IssueCategory = "Printer"
	publish(t, d, events.EventTicketCategorized, yuni, reported.Add(3*time.Minute), claimed, nil)

	resolved := claimed.Clone()
	resolved.Status = domain.TicketStatusResolved
	publish(t, d, events.EventTicketResolved, yuni, reported.Add(10*time.Minute), resolved, nil)

	row, err = repo.Get(context.Background(), repository.SheetTickets, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Yuni", row["handled_by"])
	assert.Equal(t, "2024-05-01 16:02:00", row["handled_at"])
	assert.Equal(t, "Xavier", row["assigned_by"])
	assert.Equal(t, "Printer", row["category_issue"])
	assert.Equal(t, "Yuni", row["resolved_by"])
	assert.Equal(t, "2024-05-01 16:10:00", row["resolved_at"])
	assert.Empty(t, row["rejected_by"])
}

func TestRecorder_SelfClaimHasNoAssigner(t *testing.T) {
	repo, d := newRecorder(t)
	ticket := &domain.Ticket{
		ID: "SOS-00000001", Key: "C0OPS:1.1", Category: domain.CategoryEmergency,
		Reporter: reporter, Description: "fire alarm", Status: domain.TicketStatusUnassigned, ReportedAt: reported,
	}
	publish(t, d, events.EventTicketOpened, reporter, reported, ticket, nil)

	claimed := ticket.Clone()
	claimed.Status = domain.TicketStatusAssigned
	claimed.Assignee = &xavier
	publish(t, d, events.EventTicketEscalated, domain.Party{}, reported.Add(time.Minute), ticket, nil)
	publish(t, d, events.EventTicketAssigned, xavier, reported.Add(2*time.Minute), claimed, &xavier)

	row, err := repo.Get(context.Background(), repository.SheetEmergencies, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "fire alarm", row["description"])
	assert.Equal(t, "Xavier", row["handled_by"])
	assert.Empty(t, row["assigned_by"])
	assert.Equal(t, "2024-05-01 16:01:00", row["escalated_at"])
}

func TestRecorder_SubstitutionRow(t *testing.T) {
	repo, d := newRecorder(t)
	ticket := &domain.Ticket{
		ID: "PIKET-00000002", Key: "C0OPS:1.2", Category: domain.CategorySubstitution,
		Reporter: reporter, Status: domain.TicketStatusUnassigned, ReportedAt: reported,
		Substitution: &domain.SubstitutionDetails{
			Teacher: "Bu Sari", Grade: "10", Slot: "Math A", ClassDate: "2024-05-02", ClassTime: "09:00",
			Reason: "sick leave", AwaitingReplacement: true,
		},
	}
	publish(t, d, events.EventTicketOpened, reporter, reported, ticket, nil)

	row, err := repo.Get(context.Background(), repository.SheetSubstitutions, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bu Sari", row["teacher_requested"])
	assert.Equal(t, "Rina", row["requested_by"])
	assert.Equal(t, "unassigned", row["status"])
	assert.Empty(t, row["teacher_replaces"])

	edited := ticket.Clone()
	edited.Status = domain.TicketStatusAssigned
	edited.Assignee = &xavier
	publish(t, d, events.EventTicketAssigned, xavier, reported.Add(time.Minute), edited, &xavier)

	editedAt := reported.Add(5 * time.Minute)
	edited.Substitution.Replacement = "Pak Budi"
	edited.Substitution.AwaitingReplacement = false
	edited.Substitution.EditedAt = &editedAt
	publish(t, d, events.EventTicketEdited, xavier, editedAt, edited, nil)

	approved := edited.Clone()
	approved.Status = domain.TicketStatusResolved
	publish(t, d, events.EventTicketResolved, xavier, reported.Add(6*time.Minute), approved, nil)

	row, err = repo.Get(context.Background(), repository.SheetSubstitutions, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pak Budi", row["teacher_replaces"])
	assert.Equal(t, "2024-05-01 16:05:00", row["edited_at"])
	assert.Equal(t, "Xavier", row["approved_by"])
	assert.Equal(t, "2024-05-01 16:06:00", row["approved_at"])
	assert.Equal(t, "approved", row["status"])
}

func TestRecorder_RejectedTicketKeepsReason(t *testing.T) {
	repo, d := newRecorder(t)
	ticket := &domain.Ticket{
		ID: "LIVEOPS-00000003", Key: "C0OPS:1.3", Category: domain.CategoryGeneral,
		Reporter: reporter, Description: "need a new laptop", Status: domain.TicketStatusUnassigned, ReportedAt: reported,
	}
	publish(t, d, events.EventTicketOpened, reporter, reported, ticket, nil)

	rejected := ticket.Clone()
	rejected.Status = domain.TicketStatusRejected
	rejected.Assignee = &yuni
	rejected.RejectReason = "out of scope"
	publish(t, d, events.EventTicketRejected, yuni, reported.Add(time.Minute), rejected, nil)

	row, err := repo.Get(context.Background(), repository.SheetTickets, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Yuni", row["rejected_by"])
	assert.Equal(t, "out of scope", row["reject_reason"])
	assert.Equal(t, "2024-05-01 16:01:00", row["rejected_at"])
}

func TestRecorder_HelpdeskAttachmentsAndTranscript(t *testing.T) {
	repo, d := newRecorder(t)
	ticket := &domain.Ticket{
		ID: "HELP-00000004", Key: "C0OPS:1.4", Category: domain.CategoryHelpdesk,
		Reporter: reporter, Description: "laptop will not boot", Status: domain.TicketStatusUnassigned,
		ReportedAt:  reported,
		Attachments: []string{"https://files.example.com/a.png", "https://files.example.com/b.png"},
	}
	publish(t, d, events.EventTicketOpened, reporter, reported, ticket, nil)

	row, err := repo.Get(context.Background(), repository.SheetHelpdesk, ticket.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `["https://files.example.com/a.png","https://files.example.com/b.png"]`, row["attachments"])

	talked := ticket.Clone()
	talked.Transcript = []domain.TranscriptLine{
		{Author: "Rina", Text: "it beeps three times"},
		{Author: "Xavier", Text: "hold the power button"},
	}
	publish(t, d, events.EventTranscriptAdded, xavier, reported.Add(time.Minute), talked, nil)

	row, err = repo.Get(context.Background(), repository.SheetHelpdesk, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rina: it beeps three times\nXavier: hold the power button", row["chat_history"])
}

func TestRecorder_ChatLog(t *testing.T) {
	repo, d := newRecorder(t)
	require.NoError(t, d.Publish(context.Background(), events.Event{
		Type:      events.EventChatMessage,
		Actor:     reporter,
		Timestamp: reported,
		Payload:   events.ChatMessagePayload{Channel: "D0DM", TS: "1714550100.000001", Text: "hello"},
	}))

	row, err := repo.Get(context.Background(), repository.SheetChatLog, "D0DM:1714550100.000001")
	require.NoError(t, err)
	assert.Equal(t, "hello", row["text"])
	assert.Equal(t, "Rina", row["user_name"])
	assert.Equal(t, "2024-05-01 16:00:00", row["created_at"])
}

func TestRecorder_MissingRowIsReported(t *testing.T) {
	repo := repository.NewMemorySheetRepository()
	r := NewRecorder(repo, nil, wib, nil)
	ticket := &domain.Ticket{ID: "LIVEOPS-ffffffff", Key: "C0OPS:9.9", Category: domain.CategoryGeneral, Status: domain.TicketStatusResolved}

	err := r.handleTransition(context.Background(), events.Event{
		Type:      events.EventTicketResolved,
		Actor:     xavier,
		Timestamp: reported,
		Payload:   events.TransitionPayload{Ticket: ticket},
	})
	assert.ErrorIs(t, err, repository.ErrRowNotFound)

	err = r.handleTransition(context.Background(), events.Event{Type: events.EventTicketResolved, Payload: "bogus"})
	assert.ErrorIs(t, err, errUnexpectedPayload)
}

func TestSheetFor(t *testing.T) {
	assert.Equal(t, repository.SheetTickets, SheetFor(domain.CategoryGeneral))
	assert.Equal(t, repository.SheetSubstitutions, SheetFor(domain.CategorySubstitution))
	assert.Equal(t, repository.SheetEmergencies, SheetFor(domain.CategoryEmergency))
	assert.Equal(t, repository.SheetHelpdesk, SheetFor(domain.CategoryHelpdesk))
}
