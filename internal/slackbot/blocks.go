package slackbot

import (
	"github.com/slack-go/slack"

	"github.com/spec-kit/ops-ticket-bot/internal/service"
)

// Block Kit limits.
const (
	maxHeaderLen   = 150
	maxSectionLen  = 3000
	maxFieldLen    = 2000
	maxFields      = 10
	maxViewTitle   = 24
	maxButtonLabel = 75
)

// Block ids for the interactive parts of a card.
const (
	blockPicker  = "ticket_picker"
	blockButtons = "ticket_buttons"
)

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, true, false)
}

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// CardBlocks renders a card as Block Kit blocks. Interactive elements carry
// their action id and correlation token; nothing depends on block order.
func CardBlocks(card service.Card) []slack.Block {
	var blocks []slack.Block
	if card.Header != "" {
		blocks = append(blocks, slack.NewHeaderBlock(plain(clip(card.Header, maxHeaderLen))))
	}
	if card.Intro != "" {
		blocks = append(blocks, slack.NewSectionBlock(markdown(clip(card.Intro, maxSectionLen)), nil, nil))
	}
	for start := 0; start < len(card.Fields); start += maxFields {
		end := start + maxFields
		if end > len(card.Fields) {
			end = len(card.Fields)
		}
		fields := make([]*slack.TextBlockObject, 0, end-start)
		for _, f := range card.Fields[start:end] {
			fields = append(fields, markdown(clip("*"+f.Label+":*\n"+f.Value, maxFieldLen)))
		}
		blocks = append(blocks, slack.NewSectionBlock(nil, fields, nil))
	}
	if card.Progress != "" {
		blocks = append(blocks, slack.NewDividerBlock(),
			slack.NewSectionBlock(markdown(clip(card.Progress, maxSectionLen)), nil, nil))
	}
	if p := card.Picker; p != nil && len(p.Options) > 0 {
		opts := make([]*slack.OptionBlockObject, len(p.Options))
		for i, o := range p.Options {
			opts[i] = slack.NewOptionBlockObject(o.Value, plain(clip(o.Label, maxButtonLabel)), nil)
		}
		sel := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain(p.Placeholder), p.ActionID, opts...)
		blocks = append(blocks, slack.NewSectionBlock(markdown(p.Prompt), nil, slack.NewAccessory(sel), slack.SectionBlockOptionBlockID(blockPicker)))
	}
	if len(card.Buttons) > 0 {
		elements := make([]slack.BlockElement, len(card.Buttons))
		for i, b := range card.Buttons {
			btn := slack.NewButtonBlockElement(b.ActionID, b.Value, plain(clip(b.Label, maxButtonLabel)))
			switch b.Style {
			case service.StylePrimary:
				btn = btn.WithStyle(slack.StylePrimary)
			case service.StyleDanger:
				btn = btn.WithStyle(slack.StyleDanger)
			}
			elements[i] = btn
		}
		blocks = append(blocks, slack.NewActionBlock(blockButtons, elements...))
	}
	return blocks
}

// FormView renders a form as a modal. Each input uses its id as both block
// id and action id.
func FormView(form service.Form) slack.ModalViewRequest {
	var blocks []slack.Block
	if form.Intro != "" {
		blocks = append(blocks, slack.NewSectionBlock(markdown(form.Intro), nil, nil))
	}
	for _, in := range form.Inputs {
		var placeholder *slack.TextBlockObject
		if in.Placeholder != "" {
			placeholder = plain(in.Placeholder)
		}
		el := slack.NewPlainTextInputBlockElement(placeholder, in.ID)
		el.Multiline = in.Multiline
		el.InitialValue = in.Initial
		block := slack.NewInputBlock(in.ID, plain(in.Label), nil, el)
		block.Optional = in.Optional
		blocks = append(blocks, block)
	}
	submit := form.Submit
	if submit == "" {
		submit = "Submit"
	}
	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      form.CallbackID,
		Title:           plain(clip(form.Title, maxViewTitle)),
		Submit:          plain(submit),
		Close:           plain("Cancel"),
		PrivateMetadata: form.Metadata,
		Blocks:          slack.Blocks{BlockSet: blocks},
	}
}

// formValues flattens submitted view state into input id → value.
func formValues(state *slack.ViewState) map[string]string {
	values := make(map[string]string)
	if state == nil {
		return values
	}
	for _, actions := range state.Values {
		for actionID, action := range actions {
			switch {
			case action.Value != "":
				values[actionID] = action.Value
			case action.SelectedOption.Value != "":
				values[actionID] = action.SelectedOption.Value
			default:
				values[actionID] = ""
			}
		}
	}
	return values
}
