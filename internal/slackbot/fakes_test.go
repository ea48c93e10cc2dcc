package slackbot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ops-ticket-bot/internal/config"
	"github.com/spec-kit/ops-ticket-bot/internal/correlation"
	"github.com/spec-kit/ops-ticket-bot/internal/domain"
	"github.com/spec-kit/ops-ticket-bot/internal/events"
	"github.com/spec-kit/ops-ticket-bot/internal/registry"
	"github.com/spec-kit/ops-ticket-bot/internal/reminder"
	"github.com/spec-kit/ops-ticket-bot/internal/service"
)

type sentMessage struct {
	Channel string
	TS      string
	Values  url.Values
}

type sentEphemeral struct {
	Channel string
	User    string
	Text    string
}

// fakeSlack records Web API calls.
type fakeSlack struct {
	mu           sync.Mutex
	seq          int
	posts        []sentMessage
	updates      []sentMessage
	ephemerals   []sentEphemeral
	views        []slack.ModalViewRequest
	users        map[string]*slack.User
	userCalls    int
	pages        [][]string
	ephemeralErr error
}

func newFakeSlack() *fakeSlack {
	return &fakeSlack{
		users: map[string]*slack.User{
			"U0REPORTER": {ID: "U0REPORTER", Name: "rina", RealName: "Rina"},
			"U0X":        {ID: "U0X", Name: "xavier", RealName: "Xavier"},
			"U0Y":        {ID: "U0Y", Name: "yuni"},
		},
		pages: [][]string{{"U0X"}, {"U0Y"}},
	}
}

func (f *fakeSlack) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	_, values, err := slack.UnsafeApplyMsgOptions("", channelID, "", options...)
	if err != nil {
		return "", "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	ts := fmt.Sprintf("1714550000.%06d", f.seq)
	f.posts = append(f.posts, sentMessage{Channel: channelID, TS: ts, Values: values})
	return channelID, ts, nil
}

func (f *fakeSlack) UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error) {
	_, values, err := slack.UnsafeApplyMsgOptions("", channelID, "", options...)
	if err != nil {
		return "", "", "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, sentMessage{Channel: channelID, TS: timestamp, Values: values})
	return channelID, timestamp, values.Get("text"), nil
}

func (f *fakeSlack) PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error) {
	if f.ephemeralErr != nil {
		return "", f.ephemeralErr
	}
	_, values, err := slack.UnsafeApplyMsgOptions("", channelID, "", options...)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemerals = append(f.ephemerals, sentEphemeral{Channel: channelID, User: userID, Text: values.Get("text")})
	return "1714550000.999999", nil
}

func (f *fakeSlack) OpenViewContext(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, view)
	return &slack.ViewResponse{}, nil
}

func (f *fakeSlack) OpenConversationContext(ctx context.Context, params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error) {
	ch := &slack.Channel{}
	ch.ID = "G0CHAT"
	return ch, false, false, nil
}

func (f *fakeSlack) GetUserInfoContext(ctx context.Context, user string) (*slack.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls++
	u, ok := f.users[user]
	if !ok {
		return nil, errors.New("user_not_found")
	}
	return u, nil
}

func (f *fakeSlack) GetUsersInConversationContext(ctx context.Context, params *slack.GetUsersInConversationParameters) ([]string, string, error) {
	page := 0
	if params.Cursor != "" {
		fmt.Sscanf(params.Cursor, "page-%d", &page)
	}
	if page >= len(f.pages) {
		return nil, "", nil
	}
	next := ""
	if page+1 < len(f.pages) {
		next = fmt.Sprintf("page-%d", page+1)
	}
	return f.pages[page], next, nil
}

func (f *fakeSlack) postsTo(channel string) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, p := range f.posts {
		if p.Channel == channel {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeSlack) ephemeralTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ephemerals))
	for i, e := range f.ephemerals {
		out[i] = e.Text
	}
	return out
}

const opsChannel = "C0OPS"

type botHarness struct {
	api       *fakeSlack
	handler   *Handler
	lifecycle *service.LifecycleService
	codec     *correlation.Codec
}

type noEscalation struct{}

func (noEscalation) Escalate(ctx context.Context, t *domain.Ticket) error { return nil }

func newBotHarness(t *testing.T) *botHarness {
	t.Helper()
	api := newFakeSlack()
	messenger := NewMessenger(api, nil)
	store := registry.NewMemoryStore(nil)
	scheduler := reminder.NewScheduler(store, reminder.NewMemoryQueue(0), noEscalation{}, time.Second, nil)
	dispatcher := events.NewInMemoryDispatcher(nil)
	codec := correlation.Default()

	routing := config.DefaultRouting()
	routing.Channels = config.ChannelsConfig{Ops: opsChannel}
	routing.Teams = nil
	routing.HandoffTargets = []config.TargetConfig{{ID: "S0NETWORK", Name: "network"}}

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		Store:      store,
		Actions:    registry.NewMemoryActionStore(),
		Reminders:  scheduler,
		Messenger:  messenger,
		Directory:  messenger,
		Dispatcher: dispatcher,
		Codec:      codec,
		Routing:    routing,
	}, service.LifecycleOptions{Location: time.UTC})

	handler := NewHandler(HandlerDependencies{
		Lifecycle: lifecycle,
		Intake:    service.NewIntakeService(lifecycle, messenger),
		Chat:      service.NewChatService(lifecycle, messenger, messenger, dispatcher, "Pepe", nil),
		Messenger: messenger,
		Directory: messenger,
		Codec:     codec,
	})
	handler.SetBotUserID("U0BOT")
	return &botHarness{api: api, handler: handler, lifecycle: lifecycle, codec: codec}
}

// report opens a ticket through the slash command and returns it.
func (h *botHarness) report(t *testing.T, text string) *domain.Ticket {
	t.Helper()
	h.handler.HandleSlashCommand(context.Background(), slack.SlashCommand{
		Command:   CommandReport,
		Text:      text,
		UserID:    "U0REPORTER",
		UserName:  "rina",
		ChannelID: "D0REPORTER",
	})
	tickets, err := h.lifecycle.List(context.Background(), registry.Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, tickets)
	return tickets[0]
}

func blockAction(user, channel, actionID, value string) slack.InteractionCallback {
	cb := slack.InteractionCallback{Type: slack.InteractionTypeBlockActions, TriggerID: "trigger-1"}
	cb.User.ID = user
	cb.Channel.ID = channel
	cb.ActionCallback.BlockActions = []*slack.BlockAction{{ActionID: actionID, Value: value}}
	return cb
}

func pickAction(user, channel, actionID, value string) slack.InteractionCallback {
	cb := blockAction(user, channel, actionID, "")
	cb.ActionCallback.BlockActions[0].SelectedOption = slack.OptionBlockObject{Value: value}
	return cb
}
