// Package reminder escalates tickets that nobody claimed in time.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrQueueFull is returned when a bounded queue cannot take another deadline.
var ErrQueueFull = errors.New("reminder: queue is full")

// Queue holds one deadline per ticket key.
type Queue interface {
	// Schedule sets the deadline for key, replacing any earlier one.
	Schedule(ctx context.Context, key string, due time.Time) error
	Cancel(ctx context.Context, key string) error
	// Due removes and returns every key whose deadline is not after now.
	Due(ctx context.Context, now time.Time) ([]string, error)
	Len(ctx context.Context) (int, error)
}

// MemoryQueue is an in-process Queue. A positive limit bounds the number of
// armed deadlines.
type MemoryQueue struct {
	mu        sync.Mutex
	deadlines map[string]time.Time
	limit     int
}

func NewMemoryQueue(limit int) *MemoryQueue {
	return &MemoryQueue{deadlines: make(map[string]time.Time), limit: limit}
}

func (q *MemoryQueue) Schedule(ctx context.Context, key string, due time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.deadlines[key]; !exists && q.limit > 0 && len(q.deadlines) >= q.limit {
		return ErrQueueFull
	}
	q.deadlines[key] = due
	return nil
}

func (q *MemoryQueue) Cancel(ctx context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.deadlines, key)
	return nil
}

func (q *MemoryQueue) Due(ctx context.Context, now time.Time) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	type entry struct {
		key string
		due time.Time
	}
	var due []entry
	for key, at := range q.deadlines {
		if !at.After(now) {
			due = append(due, entry{key, at})
			delete(q.deadlines, key)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].due.Before(due[j].due) })
	keys := make([]string, len(due))
	for i, e := range due {
		keys[i] = e.key
	}
	return keys, nil
}

func (q *MemoryQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.deadlines), nil
}

// RedisQueue keeps deadlines in a sorted set scored by unix milliseconds.
// Several bot instances can share it; ZREM decides which one fires a key.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "ticketbot"
	}
	return &RedisQueue{client: client, key: prefix + ":reminders"}
}

func (q *RedisQueue) Schedule(ctx context.Context, key string, due time.Time) error {
	return q.client.ZAdd(ctx, q.key, redis.Z{Score: float64(due.UnixMilli()), Member: key}).Err()
}

func (q *RedisQueue) Cancel(ctx context.Context, key string) error {
	return q.client.ZRem(ctx, q.key, key).Err()
}

func (q *RedisQueue) Due(ctx context.Context, now time.Time) ([]string, error) {
	candidates, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range reminders: %w", err)
	}
	keys := make([]string, 0, len(candidates))
	for _, key := range candidates {
		removed, err := q.client.ZRem(ctx, q.key, key).Result()
		if err != nil {
			return keys, fmt.Errorf("claim reminder %s: %w", key, err)
		}
		if removed == 1 {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.ZCard(ctx, q.key).Result()
	return int(n), err
}
