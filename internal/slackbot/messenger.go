package slackbot

import (
	"context"
	"fmt"
	"sync"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/domain"
	"github.com/spec-kit/ops-ticket-bot/internal/service"
)

// SlackAPI is the subset of *slack.Client the bot calls.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
	PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error)
	OpenViewContext(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error)
	OpenConversationContext(ctx context.Context, params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	GetUsersInConversationContext(ctx context.Context, params *slack.GetUsersInConversationParameters) ([]string, string, error)
}

// Messenger implements service.Messenger and service.Directory over Slack.
type Messenger struct {
	api    SlackAPI
	logger *zap.Logger

	mu    sync.RWMutex
	names map[string]string
}

var (
	_ service.Messenger = (*Messenger)(nil)
	_ service.Directory = (*Messenger)(nil)
)

// NewMessenger wraps a Slack client.
func NewMessenger(api SlackAPI, logger *zap.Logger) *Messenger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Messenger{api: api, logger: logger, names: make(map[string]string)}
}

func (m *Messenger) PostText(ctx context.Context, channel, threadTS, text string) (domain.MessageRef, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	ch, ts, err := m.api.PostMessageContext(ctx, channel, opts...)
	if err != nil {
		return domain.MessageRef{}, fmt.Errorf("post message to %s: %w", channel, err)
	}
	return domain.MessageRef{Channel: ch, TS: ts}, nil
}

func (m *Messenger) PostCard(ctx context.Context, channel string, card service.Card) (domain.MessageRef, error) {
	ch, ts, err := m.api.PostMessageContext(ctx, channel,
		slack.MsgOptionText(card.Fallback, false),
		slack.MsgOptionBlocks(CardBlocks(card)...),
	)
	if err != nil {
		return domain.MessageRef{}, fmt.Errorf("post card to %s: %w", channel, err)
	}
	return domain.MessageRef{Channel: ch, TS: ts}, nil
}

func (m *Messenger) UpdateCard(ctx context.Context, ref domain.MessageRef, card service.Card) error {
	_, _, _, err := m.api.UpdateMessageContext(ctx, ref.Channel, ref.TS,
		slack.MsgOptionText(card.Fallback, false),
		slack.MsgOptionBlocks(CardBlocks(card)...),
	)
	if err != nil {
		return fmt.Errorf("update message %s: %w", ref.Key(), err)
	}
	return nil
}

func (m *Messenger) OpenForm(ctx context.Context, triggerID string, form service.Form) error {
	if _, err := m.api.OpenViewContext(ctx, triggerID, FormView(form)); err != nil {
		return fmt.Errorf("open view %s: %w", form.CallbackID, err)
	}
	return nil
}

func (m *Messenger) OpenConversation(ctx context.Context, userIDs ...string) (string, error) {
	ch, _, _, err := m.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{Users: userIDs})
	if err != nil {
		return "", fmt.Errorf("open conversation: %w", err)
	}
	return ch.ID, nil
}

func (m *Messenger) PostEphemeral(ctx context.Context, channel, userID, text string) error {
	if _, err := m.api.PostEphemeralContext(ctx, channel, userID, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("post ephemeral: %w", err)
	}
	return nil
}

// DisplayName prefers the real name over the handle. Results are cached.
func (m *Messenger) DisplayName(ctx context.Context, userID string) (string, error) {
	m.mu.RLock()
	name, ok := m.names[userID]
	m.mu.RUnlock()
	if ok {
		return name, nil
	}

	user, err := m.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("user info %s: %w", userID, err)
	}
	name = user.RealName
	if name == "" {
		name = user.Name
	}
	m.mu.Lock()
	m.names[userID] = name
	m.mu.Unlock()
	return name, nil
}

// ChannelMembers lists channel members, following pagination.
func (m *Messenger) ChannelMembers(ctx context.Context, channel string) ([]string, error) {
	var (
		members []string
		cursor  string
	)
	for {
		page, next, err := m.api.GetUsersInConversationContext(ctx, &slack.GetUsersInConversationParameters{
			ChannelID: channel,
			Cursor:    cursor,
			Limit:     200,
		})
		if err != nil {
			return nil, fmt.Errorf("list members of %s: %w", channel, err)
		}
		members = append(members, page...)
		if next == "" {
			return members, nil
		}
		cursor = next
	}
}
