package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/config"
	"github.com/spec-kit/ops-ticket-bot/internal/correlation"
	"github.com/spec-kit/ops-ticket-bot/internal/domain"
	"github.com/spec-kit/ops-ticket-bot/internal/events"
	"github.com/spec-kit/ops-ticket-bot/internal/registry"
	"github.com/spec-kit/ops-ticket-bot/pkg/util"
)

// LifecycleService drives tickets through their states. Every transition
// is a single atomic registry update; chat notifications follow the commit
// and the ledger is written last by event subscribers.
type LifecycleService struct {
	store      registry.Store
	actions    registry.ActionStore
	reminders  Reminders
	messenger  Messenger
	directory  Directory
	dispatcher events.Dispatcher
	codec      *correlation.Codec
	routing    config.RoutingConfig
	opts       LifecycleOptions
	render     cardRenderer
	logger     *zap.Logger
	now        func() time.Time
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	Store      registry.Store
	Actions    registry.ActionStore
	Reminders  Reminders
	Messenger  Messenger
	Directory  Directory
	Dispatcher events.Dispatcher
	Codec      *correlation.Codec
	Routing    config.RoutingConfig
	Logger     *zap.Logger
}

// LifecycleOptions tunes display and timing.
type LifecycleOptions struct {
	DisplayBudget  int
	ReminderDelay  time.Duration
	EmergencyDelay time.Duration
	ActionTTL      time.Duration
	Location       *time.Location
}

func (o *LifecycleOptions) applyDefaults() {
	if o.DisplayBudget <= 0 {
		o.DisplayBudget = correlation.DefaultDisplayBudget
	}
	if o.ReminderDelay <= 0 {
		o.ReminderDelay = 3 * time.Minute
	}
	if o.EmergencyDelay <= 0 {
		o.EmergencyDelay = time.Minute
	}
	if o.ActionTTL <= 0 {
		o.ActionTTL = 30 * time.Minute
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
}

// NewLifecycleService wires the service.
func NewLifecycleService(deps LifecycleDependencies, opts LifecycleOptions) *LifecycleService {
	opts.applyDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	codec := deps.Codec
	if codec == nil {
		codec = correlation.Default()
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher(logger)
	}
	return &LifecycleService{
		store:      deps.Store,
		actions:    deps.Actions,
		reminders:  deps.Reminders,
		messenger:  deps.Messenger,
		directory:  deps.Directory,
		dispatcher: dispatcher,
		codec:      codec,
		routing:    deps.Routing,
		opts:       opts,
		render: cardRenderer{
			codec:      codec,
			loc:        opts.Location,
			budget:     opts.DisplayBudget,
			categories: deps.Routing.IssueCategories,
			logger:     logger,
		},
		logger: logger,
		now:    time.Now,
	}
}

// OpenInput describes a new report.
type OpenInput struct {
	Category     domain.Category
	Reporter     domain.Party
	Description  string
	Attachments  []string
	Substitution *domain.SubstitutionDetails
	// Channel overrides the responder channel for the category.
	Channel string
}

// ClaimInput describes a responder pick. An empty TargetID claims for the actor.
type ClaimInput struct {
	Key      string
	Actor    domain.Party
	TargetID string
}

// FormRequest asks for a follow-up form on a ticket.
type FormRequest struct {
	Key       string
	Actor     domain.Party
	TriggerID string
	Channel   string
}

// EditInput carries revised substitution fields. Empty values keep the
// current value.
type EditInput struct {
	Replacement string
	Grade       string
	Slot        string
	ClassDate   string
	ClassTime   string
	Reason      string
}

// Form input ids.
const (
	InputReason         = "reason"
	InputCustomCategory = "custom_category"
	InputReplacement    = "replacement"
	InputGrade          = "grade"
	InputSlot           = "slot"
	InputClassDate      = "class_date"
	InputClassTime      = "class_time"
)

func (s *LifecycleService) channelFor(c domain.Category) string {
	ch := s.routing.Channels
	switch c {
	case domain.CategorySubstitution:
		return firstNonEmpty(ch.Substitution, ch.Ops)
	case domain.CategoryHelpdesk:
		return firstNonEmpty(ch.Helpdesk, ch.Ops)
	case domain.CategoryEmergency:
		return firstNonEmpty(ch.Emergency, ch.Ops)
	default:
		return ch.Ops
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func newTicketID(c domain.Category) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return c.IDPrefix() + "-" + hex[:8]
}

// Open registers a new ticket, posts its messages and arms its reminder.
func (s *LifecycleService) Open(ctx context.Context, in OpenInput) (*domain.Ticket, error) {
	if !in.Category.Valid() {
		return nil, util.NewValidationError("unknown ticket category", map[string]any{"category": in.Category})
	}
	if in.Category == domain.CategorySubstitution && in.Substitution == nil {
		return nil, util.NewValidationError("substitution details are required", nil)
	}
	channel := firstNonEmpty(in.Channel, s.channelFor(in.Category))
	now := s.now()

	// the placeholder's timestamp becomes the ticket key
	primary, err := s.messenger.PostText(ctx, channel, "", "Initializing ticket...")
	if err != nil {
		return nil, fmt.Errorf("post ticket placeholder: %w", err)
	}

	ticket := &domain.Ticket{
		ID:           newTicketID(in.Category),
		Key:          primary.Key(),
		Category:     in.Category,
		Reporter:     in.Reporter,
		Description:  in.Description,
		Attachments:  in.Attachments,
		Status:       domain.TicketStatusUnassigned,
		Substitution: in.Substitution,
		Primary:      primary,
		ReportedAt:   now,
	}
	if ticket.Substitution != nil {
		sub := *ticket.Substitution
		sub.AwaitingReplacement = strings.TrimSpace(sub.Replacement) == ""
		ticket.Substitution = &sub
	}

	receipt, err := s.messenger.PostCard(ctx, in.Reporter.ID, s.render.receipt(ticket))
	if err != nil {
		s.logger.Warn("reporter receipt failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	} else {
		ticket.Receipt = receipt
	}

	if err := s.store.Create(ctx, ticket); err != nil {
		return nil, err
	}

	responders := s.responders(ctx, channel)
	if err := s.messenger.UpdateCard(ctx, primary, s.render.primary(ticket, responders)); err != nil {
		s.logger.Error("render ticket failed", zap.String("ticket_key", ticket.Key), zap.Error(err))
	}
	s.postFollowUps(ctx, ticket)

	delay := s.opts.ReminderDelay
	if ticket.Category == domain.CategoryEmergency {
		delay = s.opts.EmergencyDelay
	}
	var mirror domain.MessageRef
	if ticket.Category == domain.CategoryEmergency && s.routing.Channels.Broadcast != "" {
		mirror, err = s.messenger.PostCard(ctx, s.routing.Channels.Broadcast, s.render.mirror(ticket))
		if err != nil {
			s.logger.Warn("emergency broadcast failed", zap.String("ticket_key", ticket.Key), zap.Error(err))
		}
	}
	due, err := s.reminders.Arm(ctx, ticket.Key, delay)
	if err != nil {
		s.logger.Error("arm reminder failed", zap.String("ticket_key", ticket.Key), zap.Error(err))
	}
	if !due.IsZero() || !mirror.IsZero() {
		updated, err := s.store.Update(ctx, ticket.Key, func(t *domain.Ticket) error {
			t.ReminderDue = due
			if !mirror.IsZero() {
				t.Mirror = mirror
			}
			return nil
		})
		if err != nil {
			s.logger.Warn("record reminder failed", zap.String("ticket_key", ticket.Key), zap.Error(err))
		} else {
			ticket = updated
		}
	}

	s.logger.Info("ticket opened",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_key", ticket.Key),
		zap.String("category", string(ticket.Category)),
		zap.String("reporter", ticket.Reporter.ID))
	s.publish(ctx, events.EventTicketOpened, in.Reporter, domain.TicketStatusUnassigned, ticket, nil)
	return ticket, nil
}

// responders lists who can be picked: channel members, in-domain teams and
// handoff targets.
func (s *LifecycleService) responders(ctx context.Context, channel string) []domain.Party {
	var parties []domain.Party
	members, err := s.directory.ChannelMembers(ctx, channel)
	if err != nil {
		s.logger.Warn("list channel members failed", zap.String("channel", channel), zap.Error(err))
	}
	for _, id := range members {
		name, err := s.directory.DisplayName(ctx, id)
		if err != nil {
			name = ""
		}
		parties = append(parties, domain.Individual(id, name))
	}
	sort.Slice(parties, func(i, j int) bool { return parties[i].DisplayName() < parties[j].DisplayName() })
	for _, t := range s.routing.Teams {
		parties = append(parties, domain.Target(t.ID, t.Name))
	}
	for _, t := range s.routing.HandoffTargets {
		parties = append(parties, domain.Target(t.ID, t.Name))
	}
	return parties
}

func (s *LifecycleService) postFollowUps(ctx context.Context, t *domain.Ticket) {
	if correlation.NeedsFollowUp(t.Description, s.opts.DisplayBudget) {
		text := fmt.Sprintf("For the problem details: `%s`", t.Description)
		s.threadNote(ctx, t, text)
		if !t.Receipt.IsZero() {
			if _, err := s.messenger.PostText(ctx, t.Receipt.Channel, t.Receipt.TS, text); err != nil {
				s.logger.Warn("reporter follow-up failed", zap.String("ticket_key", t.Key), zap.Error(err))
			}
		}
	}
	if len(t.Attachments) > 0 {
		s.threadNote(ctx, t, "Attachments:\n"+strings.Join(t.Attachments, "\n"))
	}
}

// Claim assigns the ticket to the picked responder or hands it off when the
// target is an out-of-domain routing target. Only one claim can win.
func (s *LifecycleService) Claim(ctx context.Context, in ClaimInput) (*domain.Ticket, error) {
	target, handoff, err := s.resolveTarget(ctx, in)
	if err != nil {
		return nil, err
	}

	var from domain.TicketStatus
	ticket, err := s.commit(ctx, in.Key, func(t *domain.Ticket) error {
		from = t.Status
		if t.Status.Terminal() {
			return util.NewTerminal(t.ID, string(t.Status))
		}
		if t.Status != domain.TicketStatusUnassigned {
			return util.NewAlreadyClaimed(t.ID, t.Assignee.DisplayName())
		}
		assignee := target
		t.Assignee = &assignee
		if handoff {
			at := s.now()
			actor := in.Actor
			t.Status = domain.TicketStatusHandedOff
			t.ClosedBy = &actor
			t.ClosedAt = &at
		} else {
			t.Status = domain.TicketStatusAssigned
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.reminders.Cancel(ctx, ticket.Key); err != nil {
		s.logger.Warn("cancel reminder failed", zap.String("ticket_key", ticket.Key), zap.Error(err))
	}

	stamp := s.render.stamp(s.now())
	if handoff {
		s.notifyReporter(ctx, ticket, fmt.Sprintf(
			"Sorry %s, your issue isn't within our domain. But don't worry, %s will take care of it soon.",
			mention(ticket.Reporter), mention(target)))
		s.threadNote(ctx, ticket, fmt.Sprintf(
			"We've officially handed off this ticket to %s.", mention(target)))
		s.threadNote(ctx, ticket, fmt.Sprintf(
			"Hi %s,\nCould you lend a hand to %s with the following problem: `%s`?\nMuch appreciated!",
			mention(target), mention(ticket.Reporter), ticket.Description))
	} else {
		s.notifyReporter(ctx, ticket, fmt.Sprintf(
			"%s your issue will be handled by %s. We will check and text you asap. Please wait ya.",
			mention(ticket.Reporter), mention(target)))
		s.threadNote(ctx, ticket, fmt.Sprintf(
			"%s is going to resolve this issue, starting from `%s`.", mention(target), stamp))
	}
	ticket = s.refreshCards(ctx, ticket)

	evt := events.EventTicketAssigned
	if handoff {
		evt = events.EventTicketHandedOff
	}
	s.logger.Info("ticket claimed",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_key", ticket.Key),
		zap.String("status", string(ticket.Status)),
		zap.String("actor", in.Actor.ID),
		zap.String("target", target.ID))
	s.publish(ctx, evt, in.Actor, from, ticket, &target)
	return ticket, nil
}

func (s *LifecycleService) resolveTarget(ctx context.Context, in ClaimInput) (domain.Party, bool, error) {
	id := in.TargetID
	if id == "" || id == in.Actor.ID {
		return in.Actor, false, nil
	}
	if s.routing.IsHandoffTarget(id) {
		t, _ := s.routing.Target(id)
		return domain.Target(t.ID, t.Name), true, nil
	}
	if t, ok := s.routing.Target(id); ok {
		return domain.Target(t.ID, t.Name), false, nil
	}
	name, err := s.directory.DisplayName(ctx, id)
	if err != nil {
		return domain.Party{}, false, util.NewValidationError("responder could not be resolved", map[string]any{"target": id})
	}
	return domain.Individual(id, name), false, nil
}

// Categorize records the issue category. Picking the free-text category
// opens a form instead; the ticket stays as it is until that form is sent.
func (s *LifecycleService) Categorize(ctx context.Context, req FormRequest, category string) (*domain.Ticket, error) {
	if domain.IsOthers(category) {
		ticket, err := s.get(ctx, req.Key)
		if err != nil {
			return nil, err
		}
		if err := s.checkCategorizable(ticket); err != nil {
			return nil, err
		}
		action, err := s.newAction(ctx, domain.ActionCustomCategory, req)
		if err != nil {
			return nil, err
		}
		return nil, s.messenger.OpenForm(ctx, req.TriggerID, Form{
			CallbackID: FormCustomCategory,
			Title:      "Custom category",
			Submit:     "Save",
			Metadata:   s.codec.MustEncode(action.ID),
			Intro:      "Ticket " + ticket.ID,
			Inputs: []Input{
				{ID: InputCustomCategory, Label: "Category", Placeholder: "Describe the category"},
			},
		})
	}
	if !s.routing.IsIssueCategory(category) {
		return nil, util.NewValidationError("unknown issue category", map[string]any{"category": category})
	}
	return s.applyCategory(ctx, req.Key, req.Actor, category, false)
}

// SubmitCustomCategory completes the free-text category form.
func (s *LifecycleService) SubmitCustomCategory(ctx context.Context, actionID string, actor domain.Party, text string) (*domain.Ticket, error) {
	action, err := s.takeAction(ctx, actionID, domain.ActionCustomCategory)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, util.NewValidationError("category text is required", nil)
	}
	return s.applyCategory(ctx, action.TicketKey, actor, text, true)
}

func (s *LifecycleService) checkCategorizable(t *domain.Ticket) error {
	if t.Status.Terminal() {
		return util.NewTerminal(t.ID, string(t.Status))
	}
	if !t.Category.Categorizable() {
		return util.NewValidationError("ticket category does not take issue categories", map[string]any{"ticket_id": t.ID})
	}
	if t.Status != domain.TicketStatusAssigned {
		return util.NewValidationError("ticket must be claimed first", map[string]any{"ticket_id": t.ID})
	}
	return nil
}

func (s *LifecycleService) applyCategory(ctx context.Context, key string, actor domain.Party, category string, custom bool) (*domain.Ticket, error) {
	var from domain.TicketStatus
	ticket, err := s.commit(ctx, key, func(t *domain.Ticket) error {
		from = t.Status
		if err := s.checkCategorizable(t); err != nil {
			return err
		}
		t.IssueCategory = category
		t.CustomCategory = custom
		return nil
	})
	if err != nil {
		return nil, err
	}
	ticket = s.refreshCards(ctx, ticket)
	s.publish(ctx, events.EventTicketCategorized, actor, from, ticket, nil)
	return ticket, nil
}

// Resolve closes an assigned ticket.
func (s *LifecycleService) Resolve(ctx context.Context, key string, actor domain.Party) (*domain.Ticket, error) {
	var from domain.TicketStatus
	ticket, err := s.commit(ctx, key, func(t *domain.Ticket) error {
		from = t.Status
		if t.Status.Terminal() {
			return util.NewTerminal(t.ID, string(t.Status))
		}
		if t.Status != domain.TicketStatusAssigned {
			return util.NewValidationError("ticket must be claimed before it can be resolved", map[string]any{"ticket_id": t.ID})
		}
		if t.Substitution != nil && t.Substitution.AwaitingReplacement {
			return util.NewValidationError("a replacement is still pending", map[string]any{"ticket_id": t.ID})
		}
		at := s.now()
		closer := actor
		t.Status = domain.TicketStatusResolved
		t.ClosedBy = &closer
		t.ClosedAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}

	stamp := s.render.stamp(*ticket.ClosedAt)
	s.threadNote(ctx, ticket, fmt.Sprintf("%s has resolved the issue at `%s`.", mention(actor), stamp))
	ticket = s.refreshCards(ctx, ticket)
	s.notifyReporter(ctx, ticket, fmt.Sprintf(
		"%s your issue has been resolved at `%s`. Thank you :blob-bear-dance:", mention(ticket.Reporter), stamp))

	s.logger.Info("ticket resolved", zap.String("ticket_id", ticket.ID), zap.String("ticket_key", key), zap.String("actor", actor.ID))
	s.publish(ctx, events.EventTicketResolved, actor, from, ticket, nil)
	return ticket, nil
}

// RequestReject opens the rejection reason form. Nothing changes until the
// form is submitted.
func (s *LifecycleService) RequestReject(ctx context.Context, req FormRequest) error {
	ticket, err := s.get(ctx, req.Key)
	if err != nil {
		return err
	}
	if ticket.Status.Terminal() {
		return util.NewTerminal(ticket.ID, string(ticket.Status))
	}
	action, err := s.newAction(ctx, domain.ActionRejectReason, req)
	if err != nil {
		return err
	}
	return s.messenger.OpenForm(ctx, req.TriggerID, Form{
		CallbackID: FormRejectReason,
		Title:      "Reject ticket",
		Submit:     "Reject",
		Metadata:   s.codec.MustEncode(action.ID),
		Intro:      "Ticket " + ticket.ID,
		Inputs: []Input{
			{ID: InputReason, Label: "Reason", Placeholder: "Why is this ticket rejected?", Multiline: true},
		},
	})
}

// SubmitRejection rejects the ticket with the submitted reason. An
// unassigned ticket is attributed to the rejecting responder.
func (s *LifecycleService) SubmitRejection(ctx context.Context, actionID string, actor domain.Party, reason string) (*domain.Ticket, error) {
	action, err := s.takeAction(ctx, actionID, domain.ActionRejectReason)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, util.NewValidationError("a rejection reason is required", nil)
	}

	var from domain.TicketStatus
	ticket, err := s.commit(ctx, action.TicketKey, func(t *domain.Ticket) error {
		from = t.Status
		if t.Status.Terminal() {
			return util.NewTerminal(t.ID, string(t.Status))
		}
		if t.Assignee == nil {
			a := actor
			t.Assignee = &a
		}
		at := s.now()
		closer := actor
		t.Status = domain.TicketStatusRejected
		t.RejectReason = reason
		t.ClosedBy = &closer
		t.ClosedAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.reminders.Cancel(ctx, ticket.Key); err != nil {
		s.logger.Warn("cancel reminder failed", zap.String("ticket_key", ticket.Key), zap.Error(err))
	}

	stamp := s.render.stamp(*ticket.ClosedAt)
	s.threadNote(ctx, ticket, fmt.Sprintf("%s has rejected the issue at `%s` due to: `%s`.", mention(actor), stamp, reason))
	ticket = s.refreshCards(ctx, ticket)
	s.notifyReporter(ctx, ticket, fmt.Sprintf(
		"We are sorry :smiling_face_with_tear: your issue was rejected due to `%s` at %s. Let's put another question.", reason, stamp))

	s.logger.Info("ticket rejected", zap.String("ticket_id", ticket.ID), zap.String("ticket_key", ticket.Key), zap.String("actor", actor.ID))
	s.publish(ctx, events.EventTicketRejected, actor, from, ticket, nil)
	return ticket, nil
}

// RequestEdit opens the substitution edit form prefilled with current values.
func (s *LifecycleService) RequestEdit(ctx context.Context, req FormRequest) error {
	ticket, err := s.get(ctx, req.Key)
	if err != nil {
		return err
	}
	if err := checkEditable(ticket); err != nil {
		return err
	}
	action, err := s.newAction(ctx, domain.ActionEditSubstitution, req)
	if err != nil {
		return err
	}
	sub := ticket.Substitution
	return s.messenger.OpenForm(ctx, req.TriggerID, Form{
		CallbackID: FormEditSubstitution,
		Title:      "Edit substitution",
		Submit:     "Save",
		Metadata:   s.codec.MustEncode(action.ID),
		Intro:      "Ticket " + ticket.ID,
		Inputs: []Input{
			{ID: InputReplacement, Label: "Replacement teacher", Initial: sub.Replacement, Optional: true},
			{ID: InputGrade, Label: "Grade", Initial: sub.Grade},
			{ID: InputSlot, Label: "Slot", Initial: sub.Slot},
			{ID: InputClassDate, Label: "Class date", Initial: sub.ClassDate},
			{ID: InputClassTime, Label: "Class time", Initial: sub.ClassTime},
			{ID: InputReason, Label: "Reason", Initial: sub.Reason, Multiline: true},
		},
	})
}

func checkEditable(t *domain.Ticket) error {
	if t.Status.Terminal() {
		return util.NewTerminal(t.ID, string(t.Status))
	}
	if !t.Category.Editable() || t.Substitution == nil {
		return util.NewValidationError("ticket cannot be edited", map[string]any{"ticket_id": t.ID})
	}
	if t.Status != domain.TicketStatusAssigned {
		return util.NewValidationError("ticket must be claimed first", map[string]any{"ticket_id": t.ID})
	}
	if !t.Substitution.AwaitingReplacement {
		return util.NewValidationError("no replacement is pending", map[string]any{"ticket_id": t.ID})
	}
	return nil
}

// SubmitEdit applies revised substitution fields. Naming a replacement
// clears the pending-replacement marker.
func (s *LifecycleService) SubmitEdit(ctx context.Context, actionID string, actor domain.Party, in EditInput) (*domain.Ticket, error) {
	action, err := s.takeAction(ctx, actionID, domain.ActionEditSubstitution)
	if err != nil {
		return nil, err
	}
	var from domain.TicketStatus
	ticket, err := s.commit(ctx, action.TicketKey, func(t *domain.Ticket) error {
		from = t.Status
		if err := checkEditable(t); err != nil {
			return err
		}
		sub := t.Substitution
		setIfPresent(&sub.Replacement, in.Replacement)
		setIfPresent(&sub.Grade, in.Grade)
		setIfPresent(&sub.Slot, in.Slot)
		setIfPresent(&sub.ClassDate, in.ClassDate)
		setIfPresent(&sub.ClassTime, in.ClassTime)
		setIfPresent(&sub.Reason, in.Reason)
		sub.AwaitingReplacement = strings.TrimSpace(sub.Replacement) == ""
		at := s.now()
		sub.EditedAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.threadNote(ctx, ticket, fmt.Sprintf("%s updated the request at `%s`.", mention(actor), s.render.stamp(*ticket.Substitution.EditedAt)))
	ticket = s.refreshCards(ctx, ticket)
	s.publish(ctx, events.EventTicketEdited, actor, from, ticket, nil)
	return ticket, nil
}

func setIfPresent(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// AppendTranscript records a thread reply on an open helpdesk ticket.
func (s *LifecycleService) AppendTranscript(ctx context.Context, key string, author domain.Party, text string) (*domain.Ticket, error) {
	var from domain.TicketStatus
	ticket, err := s.commit(ctx, key, func(t *domain.Ticket) error {
		from = t.Status
		if t.Category != domain.CategoryHelpdesk {
			return util.NewValidationError("only helpdesk tickets keep a transcript", map[string]any{"ticket_id": t.ID})
		}
		if t.Status.Terminal() {
			return util.NewTerminal(t.ID, string(t.Status))
		}
		t.Transcript = append(t.Transcript, domain.TranscriptLine{
			Author: author.DisplayName(),
			Text:   text,
			At:     s.now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventTranscriptAdded, author, from, ticket, nil)
	return ticket, nil
}

// StartChat opens a group conversation between the actor and the reporter.
func (s *LifecycleService) StartChat(ctx context.Context, key string, actor domain.Party) (string, error) {
	ticket, err := s.get(ctx, key)
	if err != nil {
		return "", err
	}
	if ticket.Category != domain.CategoryHelpdesk {
		return "", util.NewValidationError("chat is only available for helpdesk tickets", map[string]any{"ticket_id": ticket.ID})
	}
	if ticket.Status.Terminal() {
		return "", util.NewTerminal(ticket.ID, string(ticket.Status))
	}
	channel, err := s.messenger.OpenConversation(ctx, actor.ID, ticket.Reporter.ID)
	if err != nil {
		return "", fmt.Errorf("open conversation: %w", err)
	}
	if _, err := s.messenger.PostText(ctx, channel, "", fmt.Sprintf(
		"Hi %s, %s is following up on ticket `%s`: `%s`",
		mention(ticket.Reporter), mention(actor), ticket.ID, s.render.short(ticket.Description))); err != nil {
		s.logger.Warn("chat intro failed", zap.String("ticket_key", key), zap.Error(err))
	}
	s.threadNote(ctx, ticket, fmt.Sprintf("%s started a chat with %s.", mention(actor), mention(ticket.Reporter)))
	return channel, nil
}

// Get returns a ticket by key.
func (s *LifecycleService) Get(ctx context.Context, key string) (*domain.Ticket, error) {
	return s.get(ctx, key)
}

// List returns tickets matching filter.
func (s *LifecycleService) List(ctx context.Context, filter registry.Filter) ([]*domain.Ticket, error) {
	return s.store.List(ctx, filter)
}

func (s *LifecycleService) get(ctx context.Context, key string) (*domain.Ticket, error) {
	t, err := s.store.Get(ctx, key)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, util.NewNotFound("ticket", map[string]any{"ticket_key": key})
	}
	return t, err
}

func (s *LifecycleService) commit(ctx context.Context, key string, fn registry.MutateFunc) (*domain.Ticket, error) {
	t, err := s.store.Update(ctx, key, fn)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, util.NewNotFound("ticket", map[string]any{"ticket_key": key})
	}
	return t, err
}

func (s *LifecycleService) newAction(ctx context.Context, kind domain.PendingActionKind, req FormRequest) (*domain.PendingAction, error) {
	now := s.now()
	action := &domain.PendingAction{
		ID:        strings.ReplaceAll(uuid.NewString(), "-", ""),
		Kind:      kind,
		TicketKey: req.Key,
		Actor:     req.Actor,
		Channel:   req.Channel,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.ActionTTL),
	}
	if err := s.actions.Put(ctx, action); err != nil {
		return nil, fmt.Errorf("store pending action: %w", err)
	}
	return action, nil
}

func (s *LifecycleService) takeAction(ctx context.Context, actionID string, kind domain.PendingActionKind) (*domain.PendingAction, error) {
	action, err := s.actions.Take(ctx, actionID)
	if errors.Is(err, registry.ErrActionNotFound) {
		return nil, util.NewMalformedToken(string(kind), err)
	}
	if err != nil {
		return nil, err
	}
	if action.Kind != kind {
		return nil, util.NewMalformedToken(string(kind), fmt.Errorf("pending action %s is a %s", actionID, action.Kind))
	}
	return action, nil
}

func (s *LifecycleService) notifyReporter(ctx context.Context, t *domain.Ticket, text string) {
	channel, thread := t.Reporter.ID, ""
	if !t.Receipt.IsZero() {
		channel, thread = t.Receipt.Channel, t.Receipt.TS
	}
	if _, err := s.messenger.PostText(ctx, channel, thread, text); err != nil {
		s.logger.Warn("notify reporter failed", zap.String("ticket_key", t.Key), zap.Error(err))
	}
}

func (s *LifecycleService) threadNote(ctx context.Context, t *domain.Ticket, text string) {
	if _, err := s.messenger.PostText(ctx, t.Primary.Channel, t.Primary.TS, text); err != nil {
		s.logger.Warn("thread note failed", zap.String("ticket_key", t.Key), zap.Error(err))
	}
}

// refreshCards re-renders the primary message and posts or updates the
// broadcast mirror. A newly posted mirror is recorded on the ticket.
func (s *LifecycleService) refreshCards(ctx context.Context, t *domain.Ticket) *domain.Ticket {
	if err := s.messenger.UpdateCard(ctx, t.Primary, s.render.primary(t, nil)); err != nil {
		s.logger.Warn("update ticket message failed", zap.String("ticket_key", t.Key), zap.Error(err))
	}
	if !t.Mirror.IsZero() {
		if err := s.messenger.UpdateCard(ctx, t.Mirror, s.render.mirror(t)); err != nil {
			s.logger.Warn("update mirror failed", zap.String("ticket_key", t.Key), zap.Error(err))
		}
		return t
	}
	if s.routing.Channels.Broadcast == "" {
		return t
	}
	ref, err := s.messenger.PostCard(ctx, s.routing.Channels.Broadcast, s.render.mirror(t))
	if err != nil {
		s.logger.Warn("post mirror failed", zap.String("ticket_key", t.Key), zap.Error(err))
		return t
	}
	updated, err := s.store.Update(ctx, t.Key, func(cur *domain.Ticket) error {
		cur.Mirror = ref
		return nil
	})
	if err != nil {
		s.logger.Warn("record mirror failed", zap.String("ticket_key", t.Key), zap.Error(err))
		t.Mirror = ref
		return t
	}
	return updated
}

func (s *LifecycleService) publish(ctx context.Context, typ events.EventType, actor domain.Party, from domain.TicketStatus, t *domain.Ticket, target *domain.Party) {
	_ = s.dispatcher.Publish(ctx, events.Event{
		Type:      typ,
		TicketKey: t.Key,
		Actor:     actor,
		Timestamp: s.now(),
		Payload: events.TransitionPayload{
			From:   from,
			To:     t.Status,
			Ticket: t,
			Target: target,
		},
	})
}
