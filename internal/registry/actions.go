package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ops-ticket-bot/internal/domain"
)

// ErrActionNotFound means the continuation was consumed, expired or never existed.
var ErrActionNotFound = errors.New("registry: pending action not found")

// ActionStore keeps form continuations keyed by a short id.
type ActionStore interface {
	Put(ctx context.Context, action *domain.PendingAction) error
	// Take returns the action and deletes it so a form submits once.
	Take(ctx context.Context, id string) (*domain.PendingAction, error)
}

// MemoryActionStore is an in-process ActionStore.
type MemoryActionStore struct {
	mu      sync.Mutex
	actions map[string]domain.PendingAction
	now     func() time.Time
}

func NewMemoryActionStore() *MemoryActionStore {
	return &MemoryActionStore{actions: make(map[string]domain.PendingAction), now: time.Now}
}

func (s *MemoryActionStore) Put(ctx context.Context, action *domain.PendingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, a := range s.actions {
		if a.Expired(now) {
			delete(s.actions, id)
		}
	}
	s.actions[action.ID] = *action
	return nil
}

func (s *MemoryActionStore) Take(ctx context.Context, id string) (*domain.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[id]
	if !ok {
		return nil, ErrActionNotFound
	}
	delete(s.actions, id)
	if a.Expired(s.now()) {
		return nil, ErrActionNotFound
	}
	return &a, nil
}

// RedisActionStore stores continuations with a Redis expiry.
type RedisActionStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisActionStore(client *redis.Client, prefix string) *RedisActionStore {
	if prefix == "" {
		prefix = "ticketbot"
	}
	return &RedisActionStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisActionStore) key(id string) string {
	return fmt.Sprintf("%s:action:%s", s.prefix, id)
}

func (s *RedisActionStore) Put(ctx context.Context, action *domain.PendingAction) error {
	data, err := marshal(action)
	if err != nil {
		return fmt.Errorf("encode pending action: %w", err)
	}
	var ttl time.Duration
	if !action.ExpiresAt.IsZero() {
		ttl = action.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return nil
		}
	}
	return s.client.Set(ctx, s.key(action.ID), data, ttl).Err()
}

func (s *RedisActionStore) Take(ctx context.Context, id string) (*domain.PendingAction, error) {
	data, err := s.client.GetDel(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrActionNotFound
	}
	if err != nil {
		return nil, err
	}
	var a domain.PendingAction
	if err := unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode pending action %s: %w", id, err)
	}
	return &a, nil
}
