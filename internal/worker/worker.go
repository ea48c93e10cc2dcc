package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Subscriber registers its handlers on the event dispatcher.
type Subscriber interface {
	RegisterHandlers()
}

// StartSubscribers registers event handlers. Nil subscribers are skipped.
func StartSubscribers(subscribers ...Subscriber) {
	for _, s := range subscribers {
		if s == nil {
			continue
		}
		s.RegisterHandlers()
	}
}

// SubscriberFunc adapts a dispatcher subscription to Subscriber.
type SubscriberFunc func()

func (f SubscriberFunc) RegisterHandlers() { f() }

// Evictor drops closed tickets older than cutoff.
type Evictor interface {
	Evict(cutoff time.Time) int
}

// RunEvictor periodically evicts closed tickets untouched for maxAge. It
// blocks until ctx is cancelled.
func RunEvictor(ctx context.Context, evictor Evictor, interval, maxAge time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if removed := evictor.Evict(now.Add(-maxAge)); removed > 0 {
				logger.Info("evicted closed tickets", zap.Int("count", removed))
			}
		}
	}
}
