package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ops-ticket-bot/internal/domain"
	"github.com/spec-kit/ops-ticket-bot/internal/registry"
)

func TestStartSubscribers(t *testing.T) {
	var calls int
	StartSubscribers(SubscriberFunc(func() { calls++ }), nil, SubscriberFunc(func() { calls++ }))
	assert.Equal(t, 2, calls)
}

type countingEvictor struct{ calls atomic.Int32 }

func (e *countingEvictor) Evict(cutoff time.Time) int {
	e.calls.Add(1)
	return 1
}

func TestRunEvictorStopsOnCancel(t *testing.T) {
	evictor := &countingEvictor{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunEvictor(ctx, evictor, 5*time.Millisecond, time.Hour, nil) }()

	require.Eventually(t, func() bool { return evictor.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("evictor did not stop")
	}
}

func TestRunEvictorDropsOnlyStaleClosedTickets(t *testing.T) {
	store := registry.NewMemoryStore(nil)
	ctx := context.Background()
	closer := domain.Individual("U0X", "Xavier")
	require.NoError(t, store.Create(ctx, &domain.Ticket{
		ID: "LIVEOPS-1", Key: "C0OPS:1.0", Category: domain.CategoryGeneral,
		Status: domain.TicketStatusResolved, Assignee: &closer,
		UpdatedAt: time.Now().Add(-48 * time.Hour),
	}))
	require.NoError(t, store.Create(ctx, &domain.Ticket{
		ID: "LIVEOPS-2", Key: "C0OPS:2.0", Category: domain.CategoryGeneral,
		Status: domain.TicketStatusUnassigned,
		UpdatedAt: time.Now().Add(-48 * time.Hour),
	}))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = RunEvictor(runCtx, store, 5*time.Millisecond, 24*time.Hour, nil) }()

	require.Eventually(t, func() bool {
		_, err := store.Get(ctx, "C0OPS:1.0")
		return err != nil
	}, time.Second, 5*time.Millisecond)
	_, err := store.Get(ctx, "C0OPS:2.0")
	assert.NoError(t, err)
}
