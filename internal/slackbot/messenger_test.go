package slackbot

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ops-ticket-bot/internal/domain"
	"github.com/spec-kit/ops-ticket-bot/internal/service"
)

func TestMessenger_PostTextInThread(t *testing.T) {
	api := newFakeSlack()
	m := NewMessenger(api, nil)

	ref, err := m.PostText(context.Background(), opsChannel, "1714550000.000001", "hello")
	require.NoError(t, err)
	assert.Equal(t, opsChannel, ref.Channel)
	require.Len(t, api.posts, 1)
	assert.Equal(t, "hello", api.posts[0].Values.Get("text"))
	assert.Equal(t, "1714550000.000001", api.posts[0].Values.Get("thread_ts"))
}

func TestMessenger_CardCarriesBlocks(t *testing.T) {
	api := newFakeSlack()
	m := NewMessenger(api, nil)
	card := service.Card{
		Fallback: "ticket",
		Header:   "LIVEOPS-1",
		Buttons:  []service.Button{{ActionID: service.ActionClaim, Label: "Claim", Value: "k"}},
	}

	_, err := m.PostCard(context.Background(), opsChannel, card)
	require.NoError(t, err)
	require.NoError(t, m.UpdateCard(context.Background(), domain.MessageRef{Channel: opsChannel, TS: "1.0"}, card))

	var blocks []map[string]any
	require.NoError(t, json.Unmarshal([]byte(api.updates[0].Values.Get("blocks")), &blocks))
	require.Len(t, blocks, 2)
	assert.Equal(t, "header", blocks[0]["type"])
	assert.Equal(t, "actions", blocks[1]["type"])
	assert.Equal(t, "ticket", api.posts[0].Values.Get("text"))
}

func TestMessenger_DisplayNameIsCached(t *testing.T) {
	api := newFakeSlack()
	m := NewMessenger(api, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		name, err := m.DisplayName(ctx, "U0X")
		require.NoError(t, err)
		assert.Equal(t, "Xavier", name)
	}
	name, err := m.DisplayName(ctx, "U0Y")
	require.NoError(t, err)
	assert.Equal(t, "yuni", name)
	assert.Equal(t, 2, api.userCalls)

	_, err = m.DisplayName(ctx, "U0GHOST")
	assert.Error(t, err)
}

func TestMessenger_ChannelMembersFollowsCursor(t *testing.T) {
	api := newFakeSlack()
	api.pages = [][]string{{"U01", "U02"}, {"U03"}, {"U04"}}
	m := NewMessenger(api, nil)

	members, err := m.ChannelMembers(context.Background(), opsChannel)
	require.NoError(t, err)
	assert.Equal(t, []string{"U01", "U02", "U03", "U04"}, members)
}

func TestMessenger_FormOpensModal(t *testing.T) {
	api := newFakeSlack()
	m := NewMessenger(api, nil)
	require.NoError(t, m.OpenForm(context.Background(), "trigger", service.Form{CallbackID: service.FormRejectReason, Title: "Reject"}))
	require.Len(t, api.views, 1)
	assert.Equal(t, slack.VTModal, api.views[0].Type)

	ch, err := m.OpenConversation(context.Background(), "U0X", "U0REPORTER")
	require.NoError(t, err)
	assert.Equal(t, "G0CHAT", ch)
}
