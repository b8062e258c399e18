package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestNoop_EmitsNothingObservable(t *testing.T) {
	var inst Instrumenter = Noop{}
	ctx, span := inst.StartSpan(context.Background(), "http", "handler", "request")
	if span.TraceID() != "" || span.SpanID() != "" {
		t.Fatal("noop span should carry no ids")
	}
	span.SetStatus("ok")
	span.SetMetadata("k", "v")
	span.End()
	inst.EmitBusinessEvent(ctx, "action", "entity", "1", nil)
}

func TestTraceID_RoundTripsThroughContext(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-123")
	if got := TraceID(ctx); got != "trace-123" {
		t.Fatalf("TraceID = %q, want trace-123", got)
	}
	if got := TraceID(context.Background()); got != "" {
		t.Fatalf("TraceID on bare context = %q, want empty", got)
	}
}

func TestManager_BufferForCachesPerTenantKey(t *testing.T) {
	m := NewManager(true, 1.0, 100, time.Hour)
	defer m.Close()

	b1 := m.BufferFor("tenant-a", nil)
	b2 := m.BufferFor("tenant-a", nil)
	b3 := m.BufferFor("tenant-b", nil)

	if b1 != b2 {
		t.Fatal("expected same buffer instance for the same tenant key")
	}
	if b1 == b3 {
		t.Fatal("expected distinct buffers for distinct tenant keys")
	}
}

func TestManager_DisabledSkipsNothingOnConstruction(t *testing.T) {
	m := NewManager(false, 1.0, 100, time.Hour)
	if m.Enabled() {
		t.Fatal("expected Enabled() false")
	}
}

func TestEventBuffer_FlushOnEmptyBufferIsNoop(t *testing.T) {
	eb := NewEventBuffer(nil, 10, time.Hour)
	defer eb.Stop()
	// Should not panic despite a nil pool: Flush short-circuits when there
	// are no buffered events.
	eb.Flush()
}
