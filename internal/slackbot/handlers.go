package slackbot

import (
	"context"
	"errors"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/correlation"
	"github.com/spec-kit/ops-ticket-bot/internal/domain"
	"github.com/spec-kit/ops-ticket-bot/internal/service"
	"github.com/spec-kit/ops-ticket-bot/pkg/util"
)

// Slash commands.
const (
	CommandReport       = "/hiops"
	CommandEmergency    = "/sos"
	CommandSubstitution = "/piket"
	CommandHelpdesk     = "/helpdesk"
)

const channelTypeIM = "im"

// Handler turns Slack payloads into service calls. Failures are reported
// back to the user as plain text and never returned to the event loop.
type Handler struct {
	lifecycle *service.LifecycleService
	intake    *service.IntakeService
	chat      *service.ChatService
	messenger service.Messenger
	directory service.Directory
	codec     *correlation.Codec
	logger    *zap.Logger
	botUserID string
}

// HandlerDependencies bundles collaborators for the handler.
type HandlerDependencies struct {
	Lifecycle *service.LifecycleService
	Intake    *service.IntakeService
	Chat      *service.ChatService
	Messenger service.Messenger
	Directory service.Directory
	Codec     *correlation.Codec
	Logger    *zap.Logger
}

// NewHandler wires the handler.
func NewHandler(deps HandlerDependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	codec := deps.Codec
	if codec == nil {
		codec = correlation.Default()
	}
	return &Handler{
		lifecycle: deps.Lifecycle,
		intake:    deps.Intake,
		chat:      deps.Chat,
		messenger: deps.Messenger,
		directory: deps.Directory,
		codec:     codec,
		logger:    logger,
	}
}

// SetBotUserID makes the handler ignore the bot's own messages.
func (h *Handler) SetBotUserID(id string) {
	h.botUserID = id
}

func (h *Handler) party(ctx context.Context, userID, fallback string) domain.Party {
	name, err := h.directory.DisplayName(ctx, userID)
	if err != nil || name == "" {
		name = fallback
	}
	return domain.Individual(userID, name)
}

// userMessage picks the text shown to a user for a failed interaction.
func userMessage(err error) string {
	var domainErr *util.DomainError
	if !errors.As(err, &domainErr) {
		return "Something went wrong, please try again."
	}
	switch domainErr.Code {
	case util.CodeAlreadyClaimed:
		return "This ticket has already been claimed by someone else."
	case util.CodeTerminal:
		return "This ticket is already closed."
	case util.CodeMalformedToken:
		return "This action is no longer valid. Please try again from the ticket message."
	case util.CodeNotFound:
		return "This ticket could not be found. It may have expired."
	case util.CodeValidation:
		return domainErr.Message
	default:
		return "Something went wrong, please try again."
	}
}

func (h *Handler) fail(ctx context.Context, channel, userID string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("user", userID), zap.Error(err))
	if util.ToDomainError(err).Code == util.CodeInternal {
		h.logger.Error("interaction failed", fields...)
	} else {
		h.logger.Info("interaction rejected", fields...)
	}
	text := userMessage(err)
	if channel != "" {
		if perr := h.messenger.PostEphemeral(ctx, channel, userID, text); perr == nil {
			return
		}
	}
	// views have no channel; fall back to a direct message
	if _, perr := h.messenger.PostText(ctx, userID, "", text); perr != nil {
		h.logger.Warn("failure notice not delivered", zap.String("user", userID), zap.Error(perr))
	}
}

// HandleSlashCommand processes one slash command.
func (h *Handler) HandleSlashCommand(ctx context.Context, cmd slack.SlashCommand) {
	reporter := h.party(ctx, cmd.UserID, cmd.UserName)
	var err error
	switch cmd.Command {
	case CommandReport:
		_, err = h.intake.ReportIssue(ctx, reporter, cmd.Text)
	case CommandEmergency:
		_, err = h.intake.RaiseEmergency(ctx, reporter, cmd.Text)
	case CommandSubstitution:
		err = h.intake.OpenSubstitutionForm(ctx, cmd.TriggerID)
	case CommandHelpdesk:
		err = h.intake.OpenHelpdeskForm(ctx, cmd.TriggerID)
	default:
		err = util.NewValidationError(service.UsageHint, nil)
	}
	if err != nil {
		h.fail(ctx, cmd.ChannelID, cmd.UserID, err, zap.String("command", cmd.Command))
	}
}

// HandleInteraction processes block actions and view submissions.
func (h *Handler) HandleInteraction(ctx context.Context, cb slack.InteractionCallback) {
	switch cb.Type {
	case slack.InteractionTypeViewSubmission:
		h.handleViewSubmission(ctx, cb)
	case slack.InteractionTypeBlockActions:
		for _, action := range cb.ActionCallback.BlockActions {
			h.handleBlockAction(ctx, cb, action)
		}
	}
}

func (h *Handler) handleBlockAction(ctx context.Context, cb slack.InteractionCallback, action *slack.BlockAction) {
	actor := h.party(ctx, cb.User.ID, cb.User.Name)
	channel := cb.Channel.ID
	err := h.dispatchAction(ctx, cb, action, actor)
	if err != nil {
		h.fail(ctx, channel, cb.User.ID, err, zap.String("action_id", action.ActionID))
	}
}

var buttonActions = map[string]bool{
	service.ActionClaim:     true,
	service.ActionResolve:   true,
	service.ActionReject:    true,
	service.ActionEdit:      true,
	service.ActionStartChat: true,
}

func (h *Handler) dispatchAction(ctx context.Context, cb slack.InteractionCallback, action *slack.BlockAction, actor domain.Party) error {
	req := func(key string) service.FormRequest {
		return service.FormRequest{Key: key, Actor: actor, TriggerID: cb.TriggerID, Channel: cb.Channel.ID}
	}
	switch action.ActionID {
	case service.ActionPickResponder:
		// ticket key, picked party id
		fields, err := h.decode(action.ActionID, action.SelectedOption.Value, 2)
		if err != nil {
			return err
		}
		_, err = h.lifecycle.Claim(ctx, service.ClaimInput{Key: fields[0], Actor: actor, TargetID: fields[1]})
		return err
	case service.ActionPickCategory:
		// ticket key, category name
		fields, err := h.decode(action.ActionID, action.SelectedOption.Value, 2)
		if err != nil {
			return err
		}
		_, err = h.lifecycle.Categorize(ctx, req(fields[0]), fields[1])
		return err
	}

	if !buttonActions[action.ActionID] {
		h.logger.Debug("ignoring unknown action", zap.String("action_id", action.ActionID))
		return nil
	}
	// buttons carry the ticket key only
	fields, err := h.decode(action.ActionID, action.Value, 1)
	if err != nil {
		return err
	}
	key := fields[0]
	switch action.ActionID {
	case service.ActionClaim:
		_, err = h.lifecycle.Claim(ctx, service.ClaimInput{Key: key, Actor: actor})
	case service.ActionResolve:
		_, err = h.lifecycle.Resolve(ctx, key, actor)
	case service.ActionReject:
		err = h.lifecycle.RequestReject(ctx, req(key))
	case service.ActionEdit:
		err = h.lifecycle.RequestEdit(ctx, req(key))
	case service.ActionStartChat:
		_, err = h.lifecycle.StartChat(ctx, key, actor)
	}
	return err
}

func (h *Handler) decode(site, token string, want int) ([]string, error) {
	fields, err := h.codec.Decode(token, want)
	if err != nil {
		return nil, util.NewMalformedToken(site, err)
	}
	return fields, nil
}

func (h *Handler) handleViewSubmission(ctx context.Context, cb slack.InteractionCallback) {
	actor := h.party(ctx, cb.User.ID, cb.User.Name)
	values := formValues(cb.View.State)
	callbackID := cb.View.CallbackID

	var err error
	switch callbackID {
	case service.FormSubstitutionIntake:
		_, err = h.intake.SubmitSubstitution(ctx, actor, values)
	case service.FormHelpdeskIntake:
		_, err = h.intake.SubmitHelpdesk(ctx, actor, values)
	case service.FormRejectReason, service.FormCustomCategory, service.FormEditSubstitution:
		// pending action id
		var fields []string
		fields, err = h.decode(callbackID, cb.View.PrivateMetadata, 1)
		if err != nil {
			break
		}
		actionID := fields[0]
		switch callbackID {
		case service.FormRejectReason:
			_, err = h.lifecycle.SubmitRejection(ctx, actionID, actor, values[service.InputReason])
		case service.FormCustomCategory:
			_, err = h.lifecycle.SubmitCustomCategory(ctx, actionID, actor, values[service.InputCustomCategory])
		case service.FormEditSubstitution:
			_, err = h.lifecycle.SubmitEdit(ctx, actionID, actor, service.EditInput{
				Replacement: values[service.InputReplacement],
				Grade:       values[service.InputGrade],
				Slot:        values[service.InputSlot],
				ClassDate:   values[service.InputClassDate],
				ClassTime:   values[service.InputClassTime],
				Reason:      values[service.InputReason],
			})
		}
	default:
		h.logger.Debug("ignoring unknown view", zap.String("callback_id", callbackID))
	}
	if err != nil {
		h.fail(ctx, "", cb.User.ID, err, zap.String("callback_id", callbackID))
	}
}

// HandleEventsAPI processes Events API callbacks. Only plain user messages
// are handled: direct messages and thread replies.
func (h *Handler) HandleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok || ev.SubType != "" || ev.BotID != "" || ev.User == "" || ev.User == h.botUserID {
		return
	}
	if strings.TrimSpace(ev.Text) == "" {
		return
	}
	if ev.ThreadTimeStamp == "" && ev.ChannelType != channelTypeIM {
		return
	}
	err := h.chat.HandleMessage(ctx, service.InboundMessage{
		Channel:  ev.Channel,
		TS:       ev.TimeStamp,
		ThreadTS: ev.ThreadTimeStamp,
		UserID:   ev.User,
		Text:     ev.Text,
	})
	if err != nil {
		h.logger.Warn("message handling failed",
			zap.String("channel", ev.Channel),
			zap.String("user", ev.User),
			zap.Error(err))
	}
}
