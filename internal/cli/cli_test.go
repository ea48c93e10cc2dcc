package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ops-ticket-bot/internal/auth"
	"github.com/spec-kit/ops-ticket-bot/internal/domain"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("AUTH_JWT_SECRET", "cli-secret")
	t.Setenv("AUTH_BCRYPT_COST", "4")
	t.Setenv("REGISTRY_BACKEND", "memory")
	t.Setenv("LEDGER_BACKEND", "memory")

	root := RootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPrintTickets(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	printTickets(&buf, nil, nil)
	assert.Equal(t, "No tickets found.\n", buf.String())

	jakarta := time.FixedZone("WIB", 7*3600)
	assignee := domain.Individual("U0X", "Xavier")
	buf.Reset()
	printTickets(&buf, []*domain.Ticket{
		{
			ID: "SOS-0000bbbb", Category: domain.CategoryEmergency, Status: domain.TicketStatusAssigned,
			Reporter: domain.Individual("U0REPORTER", "Rina"), Assignee: &assignee,
			ReportedAt: time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC),
		},
		{
			ID: "LIVEOPS-0000aaaa", Category: domain.CategoryGeneral, Status: domain.TicketStatusUnassigned,
			Reporter:   domain.Individual("U0Y", ""),
			ReportedAt: time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC),
		},
	}, jakarta)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Equal(t, []string{"SOS-0000bbbb", "emergency", "assigned", "Rina", "Xavier", "2024-05-01", "09:00"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"LIVEOPS-0000aaaa", "general", "unassigned", "U0Y", "-", "2024-05-01", "08:00"}, strings.Fields(lines[3]))
	assert.Equal(t, "2 ticket(s)", lines[5])
}

func TestColorStatus(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = prev })

	assert.Contains(t, colorStatus(domain.TicketStatusResolved), "\x1b[32m")
	assert.Equal(t, "mystery", colorStatus(domain.TicketStatus("mystery")))
}

func TestTokenCommand(t *testing.T) {
	out, err := execute(t, "", "token", "--subject", "alice", "--role", "admin")
	require.NoError(t, err)

	claims, err := auth.NewTokenManager("cli-secret", 60).ParseToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
	assert.Equal(t, "alice", claims.Subject)

	_, err = execute(t, "", "token", "--role", "root")
	assert.ErrorIs(t, err, auth.ErrUnknownRole)
}

func TestHashPasswordCommand(t *testing.T) {
	out, err := execute(t, "", "hash-password", "correct-horse")
	require.NoError(t, err)
	assert.NoError(t, auth.ComparePassword(strings.TrimSpace(out), "correct-horse"))

	out, err = execute(t, "battery-staple\n", "hash-password")
	require.NoError(t, err)
	assert.NoError(t, auth.ComparePassword(strings.TrimSpace(out), "battery-staple"))

	_, err = execute(t, "", "hash-password", "short")
	assert.Error(t, err)
}

func TestTicketsCommand(t *testing.T) {
	out, err := execute(t, "", "tickets", "--status", "unassigned,assigned")
	require.NoError(t, err)
	assert.Equal(t, "No tickets found.\n", out)

	_, err = execute(t, "", "tickets", "--status", "lost")
	assert.ErrorContains(t, err, "lost")

	_, err = execute(t, "", "tickets", "--category", "sports")
	assert.ErrorContains(t, err, "sports")
}

func TestMigrateCommand(t *testing.T) {
	out, err := execute(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Ledger tables ready (memory)")
}
