package sanitize

import (
	"testing"
	"time"
)

func TestValue_Time(t *testing.T) {
	ts := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	got := Value(ts)
	want := "2025-01-15T10:30:00Z"
	if got != want {
		t.Fatalf("Value(time) = %v, want %v", got, want)
	}
}

func TestValue_SafeInt(t *testing.T) {
	if got := Value(int64(42)); got != int64(42) {
		t.Fatalf("Value(int64) = %v, want 42", got)
	}
}

func TestValue_BigIntBecomesString(t *testing.T) {
	huge := int64(1) << 60
	got := Value(huge)
	if _, ok := got.(string); !ok {
		t.Fatalf("Value(huge int64) = %v (%T), want string", got, got)
	}
}

func TestRow_RecursesNestedStructures(t *testing.T) {
	row := map[string]any{
		"ts":     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		"nested": map[string]any{"inner": time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
		"list":   []any{time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)},
	}
	got := Row(row)
	if got["ts"] != "2025-01-01T00:00:00Z" {
		t.Fatalf("ts = %v", got["ts"])
	}
	nested, ok := got["nested"].(map[string]any)
	if !ok || nested["inner"] != "2025-01-02T00:00:00Z" {
		t.Fatalf("nested = %v", got["nested"])
	}
	list, ok := got["list"].([]any)
	if !ok || list[0] != "2025-01-03T00:00:00Z" {
		t.Fatalf("list = %v", got["list"])
	}
}

func TestRows_Empty(t *testing.T) {
	got := Rows(nil)
	if len(got) != 0 {
		t.Fatalf("Rows(nil) = %v, want empty", got)
	}
}
