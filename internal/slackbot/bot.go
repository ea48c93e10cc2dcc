package slackbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/config"
)

// acker acknowledges socket mode envelopes.
type acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

// Bot runs the socket mode event loop.
type Bot struct {
	client     *slack.Client
	socketMode *socketmode.Client
	ack        acker
	handler    *Handler
	logger     *zap.Logger
}

// NewClient validates the tokens and builds the Web API client.
func NewClient(cfg config.SlackConfig) (*slack.Client, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("slack bot token is required")
	}
	if !strings.HasPrefix(cfg.AppToken, "xapp-") {
		return nil, errors.New("slack app token must start with xapp-")
	}
	return slack.New(
		cfg.BotToken,
		slack.OptionDebug(cfg.Debug),
		slack.OptionAppLevelToken(cfg.AppToken),
	), nil
}

// NewBot attaches a socket mode client to the handler.
func NewBot(client *slack.Client, handler *Handler, cfg config.SlackConfig, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	sm := socketmode.New(client, socketmode.OptionDebug(cfg.Debug))
	return &Bot{
		client:     client,
		socketMode: sm,
		ack:        sm,
		handler:    handler,
		logger:     logger,
	}
}

// Run blocks until ctx is canceled or the connection fails for good.
func (b *Bot) Run(ctx context.Context) error {
	auth, err := b.client.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	b.handler.SetBotUserID(auth.UserID)
	b.logger.Info("slack bot authenticated", zap.String("bot_user", auth.UserID), zap.String("team", auth.Team))

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-b.socketMode.Events:
				if !ok {
					return
				}
				b.handleEvent(ctx, evt)
			}
		}
	}()

	return b.socketMode.RunContext(ctx)
}

func (b *Bot) handleEvent(ctx context.Context, evt socketmode.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic while handling slack event",
				zap.String("type", string(evt.Type)),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	switch evt.Type {
	case socketmode.EventTypeConnecting:
		b.logger.Info("connecting to socket mode")
	case socketmode.EventTypeConnected:
		b.logger.Info("connected to socket mode")
	case socketmode.EventTypeConnectionError:
		b.logger.Warn("socket mode connection error", zap.Any("data", evt.Data))
	case socketmode.EventTypeEventsAPI:
		payload, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		b.acknowledge(evt)
		b.handler.HandleEventsAPI(ctx, payload)
	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			return
		}
		b.acknowledge(evt)
		b.handler.HandleSlashCommand(ctx, cmd)
	case socketmode.EventTypeInteractive:
		cb, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			return
		}
		b.acknowledge(evt)
		b.handler.HandleInteraction(ctx, cb)
	}
}

func (b *Bot) acknowledge(evt socketmode.Event) {
	if evt.Request != nil {
		b.ack.Ack(*evt.Request)
	}
}
