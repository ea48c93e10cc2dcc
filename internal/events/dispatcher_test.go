package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_PublishFillsIdentityAndContinuesPastErrors(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var seen []Event
	d.Subscribe(EventTicketResolved, func(ctx context.Context, e Event) error {
		return errors.New("sheet unavailable")
	})
	d.Subscribe(EventTicketResolved, func(ctx context.Context, e Event) error {
		seen = append(seen, e)
		return nil
	})
	d.Subscribe(EventTicketRejected, func(ctx context.Context, e Event) error {
		t.Fatal("wrong event type delivered")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketResolved, TicketKey: "C1:1.0"}))
	require.Len(t, seen, 1)
	assert.NotEmpty(t, seen[0].ID)
	assert.False(t, seen[0].Timestamp.IsZero())
	assert.Equal(t, "C1:1.0", seen[0].TicketKey)
}
