// Package registry holds the live state of every ticket and the pending
// form continuations that reference them.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/domain"
)

var (
	// ErrNotFound is a normal outcome: the key may belong to a flow that was
	// never registered or was evicted.
	ErrNotFound = errors.New("registry: ticket not found")
	// ErrTerminal is returned when a status change would leave a terminal state.
	ErrTerminal = errors.New("registry: ticket is in a terminal state")
)

// Filter narrows List results.
type Filter struct {
	Statuses []domain.TicketStatus
	Category domain.Category
	Limit    int
}

func (f Filter) matches(t *domain.Ticket) bool {
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if t.Status == s {
			return true
		}
	}
	return false
}

// MutateFunc edits a ticket in place. Returning an error aborts the update
// and leaves the stored ticket untouched.
type MutateFunc func(t *domain.Ticket) error

// Store is the shared mutable ticket state. Implementations must be safe
// for concurrent use; Update is an atomic read-modify-write.
type Store interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Get(ctx context.Context, key string) (*domain.Ticket, error)
	Update(ctx context.Context, key string, fn MutateFunc) (*domain.Ticket, error)
	SetStatus(ctx context.Context, key string, status domain.TicketStatus) error
	Remove(ctx context.Context, key string) error
	List(ctx context.Context, filter Filter) ([]*domain.Ticket, error)
	Ping(ctx context.Context) error
}

// MemoryStore keeps tickets for the life of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	logger  *zap.Logger
	now     func() time.Time
}

// NewMemoryStore builds an empty in-process store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		tickets: make(map[string]*domain.Ticket),
		logger:  logger,
		now:     time.Now,
	}
}

// Create registers a ticket. An existing key is overwritten; keys are
// platform-issued message identifiers.
func (s *MemoryStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}
	stored := ticket.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tickets[ticket.Key]; exists {
		s.logger.Warn("overwriting registry entry", zap.String("ticket_key", ticket.Key))
	}
	s.tickets[ticket.Key] = stored
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[key]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

// Update applies fn to a copy of the ticket and commits it only when fn
// succeeds and the result is still valid.
func (s *MemoryStore) Update(ctx context.Context, key string, fn MutateFunc) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tickets[key]
	if !ok {
		return nil, ErrNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	next.Version = current.Version + 1
	next.UpdatedAt = s.now()
	s.tickets[key] = next
	return next.Clone(), nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, key string, status domain.TicketStatus) error {
	_, err := s.Update(ctx, key, statusSetter(s.logger, key, status))
	return err
}

func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickets, key)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]*domain.Ticket, error) {
	s.mu.RLock()
	out := make([]*domain.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		if filter.matches(t) {
			out = append(out, t.Clone())
		}
	}
	s.mu.RUnlock()
	return sortAndLimit(out, filter.Limit), nil
}

// Evict drops terminal tickets last touched before cutoff. Returns the
// number removed.
func (s *MemoryStore) Evict(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, t := range s.tickets {
		if t.Status.Terminal() && t.UpdatedAt.Before(cutoff) {
			delete(s.tickets, key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func statusSetter(logger *zap.Logger, key string, status domain.TicketStatus) MutateFunc {
	return func(t *domain.Ticket) error {
		if t.Status.Terminal() && t.Status != status {
			logger.Warn("rejected status change out of terminal state",
				zap.String("ticket_key", key),
				zap.String("from", string(t.Status)),
				zap.String("to", string(status)))
			return ErrTerminal
		}
		t.Status = status
		return nil
	}
}

func sortAndLimit(tickets []*domain.Ticket, limit int) []*domain.Ticket {
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].ReportedAt.After(tickets[j].ReportedAt)
	})
	if limit > 0 && len(tickets) > limit {
		tickets = tickets[:limit]
	}
	return tickets
}
