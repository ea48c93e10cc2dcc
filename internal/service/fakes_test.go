package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ops-ticket-bot/internal/config"
	"github.com/spec-kit/ops-ticket-bot/internal/correlation"
	"github.com/spec-kit/ops-ticket-bot/internal/domain"
	"github.com/spec-kit/ops-ticket-bot/internal/events"
	"github.com/spec-kit/ops-ticket-bot/internal/registry"
	"github.com/spec-kit/ops-ticket-bot/internal/reminder"
)

type postedText struct {
	Channel  string
	ThreadTS string
	Text     string
}

type postedCard struct {
	Ref  domain.MessageRef
	Card Card
}

type fakeMessenger struct {
	mu        sync.Mutex
	seq       int
	texts     []postedText
	cards     []postedCard
	updates   []postedCard
	forms     []Form
	ephemeral []string
	convos    [][]string
	failPosts bool
}

func (f *fakeMessenger) nextTS() string {
	f.seq++
	return fmt.Sprintf("1714550000.%06d", f.seq)
}

func (f *fakeMessenger) PostText(ctx context.Context, channel, threadTS, text string) (domain.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPosts && text != "Initializing ticket..." {
		return domain.MessageRef{}, errors.New("channel_not_found")
	}
	f.texts = append(f.texts, postedText{Channel: channel, ThreadTS: threadTS, Text: text})
	return domain.MessageRef{Channel: channel, TS: f.nextTS()}, nil
}

func (f *fakeMessenger) PostCard(ctx context.Context, channel string, card Card) (domain.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := domain.MessageRef{Channel: channel, TS: f.nextTS()}
	f.cards = append(f.cards, postedCard{Ref: ref, Card: card})
	return ref, nil
}

func (f *fakeMessenger) UpdateCard(ctx context.Context, ref domain.MessageRef, card Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, postedCard{Ref: ref, Card: card})
	return nil
}

func (f *fakeMessenger) OpenForm(ctx context.Context, triggerID string, form Form) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forms = append(f.forms, form)
	return nil
}

func (f *fakeMessenger) OpenConversation(ctx context.Context, userIDs ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convos = append(f.convos, userIDs)
	return "G-" + strings.Join(userIDs, "-"), nil
}

func (f *fakeMessenger) PostEphemeral(ctx context.Context, channel, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemeral = append(f.ephemeral, text)
	return nil
}

// textsIn returns texts posted to channel, optionally containing substr.
func (f *fakeMessenger) textsIn(channel, substr string) []postedText {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []postedText
	for _, t := range f.texts {
		if t.Channel == channel && strings.Contains(t.Text, substr) {
			out = append(out, t)
		}
	}
	return out
}

func (f *fakeMessenger) lastUpdate(ref domain.MessageRef) (Card, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.updates) - 1; i >= 0; i-- {
		if f.updates[i].Ref == ref {
			return f.updates[i].Card, true
		}
	}
	return Card{}, false
}

func (f *fakeMessenger) lastForm() Form {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forms[len(f.forms)-1]
}

type fakeDirectory struct {
	names   map[string]string
	members []string
}

func (d *fakeDirectory) DisplayName(ctx context.Context, userID string) (string, error) {
	if name, ok := d.names[userID]; ok {
		return name, nil
	}
	return "", errors.New("user_not_found")
}

func (d *fakeDirectory) ChannelMembers(ctx context.Context, channel string) ([]string, error) {
	return d.members, nil
}

type escalationCounter struct {
	mu    sync.Mutex
	count int
}

func (e *escalationCounter) Escalate(ctx context.Context, t *domain.Ticket) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count++
	return nil
}

const (
	opsChannel       = "C0OPS"
	broadcastChannel = "C0BROADCAST"
	reporterID       = "U0REPORTER"
	responderX       = "U0X"
	responderY       = "U0Y"
	handoffTeam      = "S0NETWORK"
	overflowAccount  = "U0OVERFLOW"
)

var (
	reporter = domain.Individual(reporterID, "Rina")
	actorX   = domain.Individual(responderX, "Xavier")
	actorY   = domain.Individual(responderY, "Yuni")
	t0       = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
)

type harness struct {
	svc       *LifecycleService
	intake    *IntakeService
	store     *registry.MemoryStore
	queue     *reminder.MemoryQueue
	scheduler *reminder.Scheduler
	escalator *escalationCounter
	messenger *fakeMessenger
	events    []events.Event
	mu        sync.Mutex
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     registry.NewMemoryStore(nil),
		queue:     reminder.NewMemoryQueue(0),
		escalator: &escalationCounter{},
		messenger: &fakeMessenger{},
	}
	h.scheduler = reminder.NewScheduler(h.store, h.queue, h.escalator, time.Second, nil)

	dispatcher := events.NewInMemoryDispatcher(nil)
	for _, typ := range events.LifecycleEvents {
		dispatcher.Subscribe(typ, func(ctx context.Context, e events.Event) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.events = append(h.events, e)
			return nil
		})
	}

	routing := config.DefaultRouting()
	routing.Channels = config.ChannelsConfig{Ops: opsChannel, Broadcast: broadcastChannel}
	routing.Teams = []config.TargetConfig{{ID: "S0LIVEOPS", Name: "live-ops"}}
	routing.HandoffTargets = []config.TargetConfig{
		{ID: handoffTeam, Name: "network"},
		{ID: overflowAccount, Name: "overflow"},
	}

	h.svc = NewLifecycleService(LifecycleDependencies{
		Store:     h.store,
		Actions:   registry.NewMemoryActionStore(),
		Reminders: h.scheduler,
		Messenger: h.messenger,
		Directory: &fakeDirectory{
			names:   map[string]string{reporterID: "Rina", responderX: "Xavier", responderY: "Yuni"},
			members: []string{responderX, responderY},
		},
		Dispatcher: dispatcher,
		Codec:      correlation.Default(),
		Routing:    routing,
	}, LifecycleOptions{Location: time.UTC})
	h.svc.now = func() time.Time { return t0 }
	h.intake = NewIntakeService(h.svc, h.messenger)
	return h
}

func (h *harness) eventTypes() []events.EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]events.EventType, len(h.events))
	for i, e := range h.events {
		out[i] = e.Type
	}
	return out
}

func (h *harness) open(t *testing.T, text string) *domain.Ticket {
	t.Helper()
	ticket, err := h.intake.ReportIssue(context.Background(), reporter, text)
	require.NoError(t, err)
	return ticket
}

func (h *harness) openSubstitution(t *testing.T, replacement string) *domain.Ticket {
	t.Helper()
	ticket, err := h.intake.SubmitSubstitution(context.Background(), reporter, map[string]string{
		InputTeacher:     "Bu Sari",
		InputReplacement: replacement,
		InputGrade:       "10",
		InputSlot:        "Math A",
		InputClassDate:   "2024-05-02",
		InputClassTime:   "09:00",
		InputReason:      "sick leave",
	})
	require.NoError(t, err)
	return ticket
}

// formAction decodes the pending-action id carried by the last opened form.
func (h *harness) formAction(t *testing.T) string {
	t.Helper()
	fields, err := correlation.Default().Decode(h.messenger.lastForm().Metadata, 1)
	require.NoError(t, err)
	return fields[0]
}
