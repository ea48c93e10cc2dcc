package service

import (
	"context"
	"time"

	"github.com/spec-kit/ops-ticket-bot/internal/domain"
)

// Interactive element and form identifiers. Each element's value is a
// correlation token; the field list for each is documented where it is
// decoded.
const (
	ActionPickResponder = "pick_responder"
	ActionPickCategory  = "pick_category"
	ActionClaim         = "claim_ticket"
	ActionResolve       = "resolve_ticket"
	ActionReject        = "reject_ticket"
	ActionEdit          = "edit_substitution"
	ActionStartChat     = "start_chat"

	FormRejectReason       = "reject_reason_form"
	FormCustomCategory     = "custom_category_form"
	FormEditSubstitution   = "edit_substitution_form"
	FormSubstitutionIntake = "substitution_intake_form"
	FormHelpdeskIntake     = "helpdesk_intake_form"
)

// Messenger is the outbound side of the chat platform.
type Messenger interface {
	// PostText posts plain text, in a thread when threadTS is set.
	PostText(ctx context.Context, channel, threadTS, text string) (domain.MessageRef, error)
	PostCard(ctx context.Context, channel string, card Card) (domain.MessageRef, error)
	UpdateCard(ctx context.Context, ref domain.MessageRef, card Card) error
	OpenForm(ctx context.Context, triggerID string, form Form) error
	// OpenConversation opens a group direct message and returns its channel.
	OpenConversation(ctx context.Context, userIDs ...string) (string, error)
	PostEphemeral(ctx context.Context, channel, userID, text string) error
}

// Directory resolves platform identities.
type Directory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
	ChannelMembers(ctx context.Context, channel string) ([]string, error)
}

// Reminders arms and cancels escalation deadlines.
type Reminders interface {
	Arm(ctx context.Context, key string, delay time.Duration) (time.Time, error)
	Cancel(ctx context.Context, key string) error
}

// Card is a platform-neutral ticket message.
type Card struct {
	Fallback string
	Header   string
	Intro    string
	Fields   []Field
	Progress string
	Picker   *Picker
	Buttons  []Button
}

// Field is a label/value pair.
type Field struct {
	Label string
	Value string
}

// Picker is a single-choice menu.
type Picker struct {
	ActionID    string
	Prompt      string
	Placeholder string
	Options     []Option
}

// Option is one menu choice. Value is a correlation token.
type Option struct {
	Label string
	Value string
}

// Button styles.
const (
	StylePrimary = "primary"
	StyleDanger  = "danger"
)

// Button is an action button. Value is a correlation token.
type Button struct {
	ActionID string
	Label    string
	Value    string
	Style    string
}

// Form is a modal dialog. Metadata travels back on submission.
type Form struct {
	CallbackID string
	Title      string
	Submit     string
	Metadata   string
	Intro      string
	Inputs     []Input
}

// Input is one text field of a form. Submitted values are keyed by ID.
type Input struct {
	ID          string
	Label       string
	Placeholder string
	Initial     string
	Multiline   bool
	Optional    bool
}
