package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/correlation"
	"github.com/spec-kit/ops-ticket-bot/internal/domain"
)

func testRenderer(categories ...string) cardRenderer {
	return cardRenderer{
		codec:      correlation.Default(),
		loc:        time.UTC,
		budget:     correlation.DefaultDisplayBudget,
		categories: categories,
		logger:     zap.NewNop(),
	}
}

func cardTicket(key string, status domain.TicketStatus) *domain.Ticket {
	tk := &domain.Ticket{
		ID: "LIVEOPS-0000abcd", Key: key, Category: domain.CategoryGeneral,
		Reporter: reporter, Description: "printer is broken",
		Status: status, ReportedAt: t0,
	}
	if status != domain.TicketStatusUnassigned {
		tk.Assignee = &actorX
	}
	return tk
}

func TestCards_OversizedPickerOptionsAreSkipped(t *testing.T) {
	long := strings.Repeat("x", correlation.DefaultMaxLen)
	r := testRenderer("Zoom", long, "Others")

	var card Card
	require.NotPanics(t, func() {
		card = r.primary(cardTicket("C0OPS:1.000001", domain.TicketStatusAssigned), nil)
	})
	require.NotNil(t, card.Picker)
	var labels []string
	for _, opt := range card.Picker.Options {
		labels = append(labels, opt.Label)
	}
	assert.Equal(t, []string{"Zoom", "Others"}, labels)

	card = r.primary(cardTicket("C0OPS:1.000001", domain.TicketStatusUnassigned), []domain.Party{
		domain.Individual("U0X", "Xavier"),
		domain.Target(long, "huge"),
	})
	require.NotNil(t, card.Picker)
	require.Len(t, card.Picker.Options, 1)
	assert.Equal(t, "Xavier", card.Picker.Options[0].Label)
}

func TestCards_OversizedKeyDropsControls(t *testing.T) {
	r := testRenderer("Zoom")
	key := "C0OPS:" + strings.Repeat("9", correlation.DefaultMaxLen)

	var card Card
	require.NotPanics(t, func() {
		card = r.primary(cardTicket(key, domain.TicketStatusAssigned), nil)
	})
	assert.Nil(t, card.Picker)
	assert.Empty(t, card.Buttons)
	assert.NotEmpty(t, card.Fields)
}

func TestCards_ReceiptHeaderIsPlainText(t *testing.T) {
	card := testRenderer().receipt(cardTicket("C0OPS:1.000001", domain.TicketStatusUnassigned))
	assert.Equal(t, "Your ticket number: LIVEOPS-0000abcd", card.Header)
	assert.NotContains(t, card.Header, "*")
}
