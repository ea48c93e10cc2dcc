package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/domain"
)

const maxTxRetries = 5

var encMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	encMode, err = opts.EncMode()
	if err != nil {
		panic("registry: CBOR encoder initialization failed: " + err.Error())
	}
}

func marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

// RedisStore persists tickets in Redis so correlation state survives a
// restart. Each ticket is a CBOR blob; a set per status indexes keys for
// listing.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisStore builds a store. ttl of zero keeps tickets forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = "ticketbot"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, logger: logger, now: time.Now}
}

func (s *RedisStore) ticketKey(key string) string {
	return fmt.Sprintf("%s:ticket:%s", s.prefix, key)
}

func (s *RedisStore) statusKey(status domain.TicketStatus) string {
	return fmt.Sprintf("%s:status:%s", s.prefix, status)
}

func (s *RedisStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}
	stored := ticket.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = s.now()
	}
	data, err := marshal(stored)
	if err != nil {
		return fmt.Errorf("encode ticket: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.ticketKey(stored.Key), data, s.ttl)
		pipe.SAdd(ctx, s.statusKey(stored.Status), stored.Key)
		return nil
	})
	return err
}

func (s *RedisStore) Get(ctx context.Context, key string) (*domain.Ticket, error) {
	data, err := s.client.Get(ctx, s.ticketKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var t domain.Ticket
	if err := unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode ticket %s: %w", key, err)
	}
	return &t, nil
}

// Update runs fn inside an optimistic WATCH/MULTI transaction and retries
// when another writer touched the key first.
func (s *RedisStore) Update(ctx context.Context, key string, fn MutateFunc) (*domain.Ticket, error) {
	redisKey := s.ticketKey(key)
	var result *domain.Ticket

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var current domain.Ticket
		if err := unmarshal(data, &current); err != nil {
			return fmt.Errorf("decode ticket %s: %w", key, err)
		}
		next := current.Clone()
		if err := fn(next); err != nil {
			return err
		}
		if err := next.Validate(); err != nil {
			return err
		}
		next.Version = current.Version + 1
		next.UpdatedAt = s.now()
		encoded, err := marshal(next)
		if err != nil {
			return fmt.Errorf("encode ticket: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, encoded, s.ttl)
			if next.Status != current.Status {
				pipe.SRem(ctx, s.statusKey(current.Status), key)
				pipe.SAdd(ctx, s.statusKey(next.Status), key)
			}
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, redisKey)
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("registry update raced, retrying", zap.String("ticket_key", key), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("registry update %s: %w", key, redis.TxFailedErr)
}

func (s *RedisStore) SetStatus(ctx context.Context, key string, status domain.TicketStatus) error {
	_, err := s.Update(ctx, key, statusSetter(s.logger, key, status))
	return err
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	t, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.ticketKey(key))
		pipe.SRem(ctx, s.statusKey(t.Status), key)
		return nil
	})
	return err
}

func (s *RedisStore) List(ctx context.Context, filter Filter) ([]*domain.Ticket, error) {
	statuses := filter.Statuses
	if len(statuses) == 0 {
		statuses = []domain.TicketStatus{
			domain.TicketStatusUnassigned,
			domain.TicketStatusAssigned,
			domain.TicketStatusResolved,
			domain.TicketStatusRejected,
			domain.TicketStatusHandedOff,
		}
	}
	var out []*domain.Ticket
	for _, status := range statuses {
		keys, err := s.client.SMembers(ctx, s.statusKey(status)).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			t, err := s.Get(ctx, key)
			if errors.Is(err, ErrNotFound) {
				// expired by TTL; drop the stale index entry
				s.client.SRem(ctx, s.statusKey(status), key)
				continue
			}
			if err != nil {
				return nil, err
			}
			if filter.matches(t) {
				out = append(out, t)
			}
		}
	}
	return sortAndLimit(out, filter.Limit), nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
