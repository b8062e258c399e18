// Package telemetry adapts the trace-ID propagating span/event model to the
// gateway's multi-tenant shape: events are flushed in batches to each
// tenant's own `_request_events` table rather than one shared database.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const (
	traceIDKey ctxKey = iota
	parentSpanIDKey
	instrumenterKey
	userIDKey
)

// Instrumenter starts spans and emits one-shot business events.
type Instrumenter interface {
	StartSpan(ctx context.Context, source, component, action string) (context.Context, Span)
	EmitBusinessEvent(ctx context.Context, action, entity, recordID string, metadata map[string]any)
}

// Span represents one timed operation.
type Span interface {
	End()
	SetStatus(status string)
	SetMetadata(key string, value any)
	SetEntity(entity, recordID string)
	TraceID() string
	SpanID() string
}

// Event is a row of a tenant's `_request_events` table.
type Event struct {
	TraceID      string
	SpanID       string
	ParentSpanID *string
	EventType    string
	Source       string
	Component    string
	Action       string
	Entity       *string
	RecordID     *string
	UserID       *string
	DurationMs   *float64
	Status       *string
	Metadata     map[string]any
	CreatedAt    time.Time
}

func newUUID() string { return uuid.New().String() }

// WithTraceID attaches traceID to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID reads the trace id from ctx, or "" if absent.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

func withParentSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, parentSpanIDKey, spanID)
}

func parentSpanID(ctx context.Context) string {
	if v, ok := ctx.Value(parentSpanIDKey).(string); ok {
		return v
	}
	return ""
}

// WithInstrumenter attaches inst to ctx.
func WithInstrumenter(ctx context.Context, inst Instrumenter) context.Context {
	return context.WithValue(ctx, instrumenterKey, inst)
}

// FromContext returns the Instrumenter set on ctx, or a Noop one.
func FromContext(ctx context.Context) Instrumenter {
	if v, ok := ctx.Value(instrumenterKey).(Instrumenter); ok {
		return v
	}
	return &Noop{}
}

// WithUserID attaches the resolved principal id to ctx for span attribution.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func userID(ctx context.Context) *string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return &v
	}
	return nil
}

// Live is the real Instrumenter: it enqueues events onto an EventBuffer
// bound to one tenant's pool.
type Live struct {
	buffer *EventBuffer
}

// NewLive constructs a Live instrumenter backed by buffer.
func NewLive(buffer *EventBuffer) *Live {
	return &Live{buffer: buffer}
}

func (i *Live) StartSpan(ctx context.Context, source, component, action string) (context.Context, Span) {
	span := &liveSpan{
		traceID:      TraceID(ctx),
		spanID:       newUUID(),
		parentSpanID: parentSpanID(ctx),
		source:       source,
		component:    component,
		action:       action,
		startTime:    time.Now(),
		buffer:       i.buffer,
		userID:       userID(ctx),
	}
	ctx = withParentSpanID(ctx, span.spanID)
	return ctx, span
}

func (i *Live) EmitBusinessEvent(ctx context.Context, action, entity, recordID string, metadata map[string]any) {
	event := Event{
		TraceID:   TraceID(ctx),
		SpanID:    newUUID(),
		EventType: "business",
		Source:    "business",
		Component: "api",
		Action:    action,
		Metadata:  metadata,
		UserID:    userID(ctx),
	}
	if p := parentSpanID(ctx); p != "" {
		event.ParentSpanID = &p
	}
	if entity != "" {
		event.Entity = &entity
	}
	if recordID != "" {
		event.RecordID = &recordID
	}
	i.buffer.Enqueue(event)
}

type liveSpan struct {
	traceID      string
	spanID       string
	parentSpanID string
	source       string
	component    string
	action       string
	entity       *string
	recordID     *string
	userID       *string
	status       *string
	startTime    time.Time
	metadata     map[string]any
	buffer       *EventBuffer
	mu           sync.Mutex
	ended        bool
}

func (s *liveSpan) TraceID() string { return s.traceID }
func (s *liveSpan) SpanID() string  { return s.spanID }

func (s *liveSpan) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = &status
}

func (s *liveSpan) SetMetadata(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metadata == nil {
		s.metadata = make(map[string]any)
	}
	s.metadata[key] = value
}

func (s *liveSpan) SetEntity(entity, recordID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entity = &entity
	if recordID != "" {
		s.recordID = &recordID
	}
}

func (s *liveSpan) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true

	durationMs := float64(time.Since(s.startTime).Microseconds()) / 1000.0
	event := Event{
		TraceID:    s.traceID,
		SpanID:     s.spanID,
		EventType:  "system",
		Source:     s.source,
		Component:  s.component,
		Action:     s.action,
		Entity:     s.entity,
		RecordID:   s.recordID,
		UserID:     s.userID,
		DurationMs: &durationMs,
		Status:     s.status,
		Metadata:   s.metadata,
	}
	if s.parentSpanID != "" {
		event.ParentSpanID = &s.parentSpanID
	}
	s.buffer.Enqueue(event)
}

// Noop discards every span and event. Used when telemetry is disabled or a
// request is sampled out.
type Noop struct{}

func (Noop) StartSpan(ctx context.Context, source, component, action string) (context.Context, Span) {
	return ctx, noopSpan{}
}
func (Noop) EmitBusinessEvent(ctx context.Context, action, entity, recordID string, metadata map[string]any) {
}

type noopSpan struct{}

func (noopSpan) End()                             {}
func (noopSpan) SetStatus(string)                 {}
func (noopSpan) SetMetadata(string, any)           {}
func (noopSpan) SetEntity(string, string)         {}
func (noopSpan) TraceID() string                  { return "" }
func (noopSpan) SpanID() string                   { return "" }
