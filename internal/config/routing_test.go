package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRouting(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadRouting_DefaultsWithoutFile(t *testing.T) {
	r, err := LoadRouting("")
	require.NoError(t, err)
	assert.True(t, r.IsHandoffTarget("S05RYHJ41C6"))
	assert.True(t, r.IsIssueCategory("Zoom"))
	assert.Equal(t, "C05Q52ZTQ3X", r.Channels.Broadcast)
}

func TestLoadRouting_FileOverridesDefaults(t *testing.T) {
	path := writeRouting(t, `
bot_name: Kiko
on_call: U0ONCALL
channels:
  ops: C0OPS
teams:
  - id: S0OPS
    name: live-ops
handoff_targets:
  - id: S0NET
    name: network
issue_categories: [Zoom, Others]
`)
	r, err := LoadRouting(path)
	require.NoError(t, err)
	assert.Equal(t, "Kiko", r.BotName)
	assert.Equal(t, "C0OPS", r.Channels.Ops)
	assert.Equal(t, "C05Q52ZTQ3X", r.Channels.Broadcast)
	assert.False(t, r.IsHandoffTarget("S05RYHJ41C6"))
	assert.True(t, r.IsHandoffTarget("S0NET"))

	team, ok := r.Target("S0OPS")
	require.True(t, ok)
	assert.Equal(t, "live-ops", team.Name)
	assert.Equal(t, []string{"Zoom", "Others"}, r.IssueCategories)
}

func TestLoadRouting_RejectsOverlappingTargets(t *testing.T) {
	path := writeRouting(t, `
teams:
  - id: S0X
handoff_targets:
  - id: S0X
`)
	_, err := LoadRouting(path)
	assert.ErrorContains(t, err, "also listed in teams")
}

func TestLoadRouting_BadYAML(t *testing.T) {
	path := writeRouting(t, "channels: [")
	_, err := LoadRouting(path)
	assert.ErrorContains(t, err, "failed to parse routing file")
}
