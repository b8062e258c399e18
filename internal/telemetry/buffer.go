package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventBuffer collects events in memory and periodically flushes them, in
// one batch insert, to one tenant pool's `_request_events` table.
type EventBuffer struct {
	mu      sync.Mutex
	events  []Event
	pool    *pgxpool.Pool
	maxSize int
	ticker  *time.Ticker
	done    chan struct{}
}

// NewEventBuffer creates a buffer bound to pool that flushes on a timer or
// when full.
func NewEventBuffer(pool *pgxpool.Pool, maxSize int, flushInterval time.Duration) *EventBuffer {
	eb := &EventBuffer{
		pool:    pool,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	eb.ticker = time.NewTicker(flushInterval)
	go eb.run()
	return eb
}

func (eb *EventBuffer) run() {
	for {
		select {
		case <-eb.done:
			return
		case <-eb.ticker.C:
			eb.Flush()
		}
	}
}

// Enqueue adds an event to the buffer, triggering an asynchronous flush if
// the buffer just reached capacity.
func (eb *EventBuffer) Enqueue(event Event) {
	eb.mu.Lock()
	eb.events = append(eb.events, event)
	full := len(eb.events) >= eb.maxSize
	eb.mu.Unlock()
	if full {
		go eb.Flush()
	}
}

// Flush writes all buffered events in a single batch insert.
func (eb *EventBuffer) Flush() {
	eb.mu.Lock()
	if len(eb.events) == 0 {
		eb.mu.Unlock()
		return
	}
	batch := eb.events
	eb.events = nil
	eb.mu.Unlock()

	ctx := context.Background()
	cols := []string{"trace_id", "span_id", "parent_span_id", "event_type", "source", "component", "action", "entity", "record_id", "user_id", "duration_ms", "status", "metadata"}

	var placeholders []string
	var args []any
	for i, e := range batch {
		offset := i * len(cols)
		ph := make([]string, len(cols))
		for j := range cols {
			ph[j] = fmt.Sprintf("$%d", offset+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ",")+")")

		var metaJSON any
		if e.Metadata != nil {
			b, _ := json.Marshal(e.Metadata)
			metaJSON = string(b)
		}
		args = append(args, e.TraceID, e.SpanID, e.ParentSpanID, e.EventType, e.Source, e.Component, e.Action, e.Entity, e.RecordID, e.UserID, e.DurationMs, e.Status, metaJSON)
	}

	sql := fmt.Sprintf("INSERT INTO _request_events (%s) VALUES %s", strings.Join(cols, ","), strings.Join(placeholders, ","))
	if _, err := eb.pool.Exec(ctx, sql, args...); err != nil {
		log.Printf("telemetry: flush %d events: %v", len(batch), err)
	}
}

// Stop halts the background ticker and flushes any remaining events.
func (eb *EventBuffer) Stop() {
	eb.ticker.Stop()
	close(eb.done)
	eb.Flush()
}

// Manager lazily creates and caches one EventBuffer per tenant pool,
// keyed by the tenant's connection identity (host+dbname), so every
// tenant's spans land in that tenant's own _request_events table.
type Manager struct {
	mu            sync.Mutex
	buffers       map[string]*EventBuffer
	maxSize       int
	flushInterval time.Duration
	enabled       bool
	samplingRate  float64
}

// NewManager constructs a Manager from telemetry configuration.
func NewManager(enabled bool, samplingRate float64, bufferSize int, flushInterval time.Duration) *Manager {
	return &Manager{
		buffers:       make(map[string]*EventBuffer),
		maxSize:       bufferSize,
		flushInterval: flushInterval,
		enabled:       enabled,
		samplingRate:  samplingRate,
	}
}

// Enabled reports whether telemetry is turned on.
func (m *Manager) Enabled() bool { return m.enabled }

// SamplingRate returns the configured fraction of requests to trace.
func (m *Manager) SamplingRate() float64 { return m.samplingRate }

// BufferFor returns the EventBuffer for tenantKey, creating and caching one
// bound to pool on first use.
func (m *Manager) BufferFor(tenantKey string, pool *pgxpool.Pool) *EventBuffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.buffers[tenantKey]; ok {
		return b
	}
	b := NewEventBuffer(pool, m.maxSize, m.flushInterval)
	m.buffers[tenantKey] = b
	return b
}

// Close stops and flushes every cached buffer. Called during shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.buffers {
		b.Stop()
	}
	m.buffers = make(map[string]*EventBuffer)
}
