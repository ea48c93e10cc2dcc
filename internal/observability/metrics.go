package observability

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/spec-kit/ops-ticket-bot/internal/events"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	eventCount   map[string]int64
	started      time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	UptimeSeconds int64            `json:"uptime_seconds"`
	Requests      map[string]int64 `json:"requests"`
	Errors        map[string]int64 `json:"errors"`
	Events        map[string]int64 `json:"events"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		eventCount:   make(map[string]int64),
		started:      time.Now(),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordEvent counts a published event, keyed by type and ticket category.
func (m *Metrics) RecordEvent(_ context.Context, event events.Event) error {
	if m == nil {
		return nil
	}
	key := string(event.Type)
	if p, ok := event.Payload.(events.TransitionPayload); ok && p.Ticket != nil {
		key += "|" + string(p.Ticket.Category)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCount[key]++
	return nil
}

// Subscribe counts every lifecycle and chat event on the dispatcher.
func (m *Metrics) Subscribe(dispatcher events.Dispatcher) {
	if m == nil || dispatcher == nil {
		return
	}
	for _, typ := range events.LifecycleEvents {
		dispatcher.Subscribe(typ, m.RecordEvent)
	}
	dispatcher.Subscribe(events.EventChatMessage, m.RecordEvent)
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		UptimeSeconds: int64(time.Since(m.started).Seconds()),
		Requests:      copyCounts(m.requestCount),
		Errors:        copyCounts(m.errorCount),
		Events:        copyCounts(m.eventCount),
	}
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
