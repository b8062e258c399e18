package paramschema

import (
	"testing"
	"time"
)

func TestResolveParams_DateAutoDefault(t *testing.T) {
	schema := Schema{
		"start": {Type: "date"},
		"end":   {Type: "date"},
	}
	got, err := ResolveParams(schema, nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	now := time.Now().UTC()
	wantStart := now.AddDate(0, 0, -30).Format("2006-01-02")
	wantEnd := now.Format("2006-01-02")
	if got["start"] != wantStart {
		t.Fatalf("start = %v, want %v", got["start"], wantStart)
	}
	if got["end"] != wantEnd {
		t.Fatalf("end = %v, want %v", got["end"], wantEnd)
	}
}

func TestResolveParams_RequiredMissingFails(t *testing.T) {
	schema := Schema{"company": {Type: "string", Required: true}}
	_, err := ResolveParams(schema, nil, nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	want := "Parâmetro obrigatório ausente: company"
	if ve.Message != want {
		t.Fatalf("message = %q, want %q", ve.Message, want)
	}
}

func TestResolveParams_Precedence(t *testing.T) {
	schema := Schema{"x": {Type: "string"}}
	defaults := map[string]any{"x": "from-default"}
	provided := map[string]any{"x": "from-provided"}

	got, err := ResolveParams(schema, defaults, provided)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got["x"] != "from-provided" {
		t.Fatalf("x = %v, want from-provided", got["x"])
	}
}

func TestResolveParams_NumberCoercionFromString(t *testing.T) {
	min := 0.0
	max := 100.0
	schema := Schema{"n": {Type: "number", Minimum: &min, Maximum: &max}}
	got, err := ResolveParams(schema, nil, map[string]any{"n": "42"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got["n"] != float64(42) {
		t.Fatalf("n = %v, want 42", got["n"])
	}
}

func TestResolveParams_NumberOutOfRangeFails(t *testing.T) {
	max := 10.0
	schema := Schema{"n": {Type: "number", Maximum: &max}}
	_, err := ResolveParams(schema, nil, map[string]any{"n": float64(20)})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestResolveParams_BooleanCoercion(t *testing.T) {
	schema := Schema{"b": {Type: "boolean"}}
	got, err := ResolveParams(schema, nil, map[string]any{"b": "TRUE"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got["b"] != true {
		t.Fatalf("b = %v, want true", got["b"])
	}
}

func TestResolveParams_ArrayFromCommaString(t *testing.T) {
	schema := Schema{"ids": {Type: "array", Items: &Entry{Type: "string"}}}
	got, err := ResolveParams(schema, nil, map[string]any{"ids": " a, b ,c"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	arr, ok := got["ids"].([]any)
	if !ok || len(arr) != 3 {
		t.Fatalf("ids = %v, want 3-element array", got["ids"])
	}
	if arr[0] != "a" || arr[1] != "b" || arr[2] != "c" {
		t.Fatalf("ids = %v, want [a b c]", arr)
	}
}

func TestResolveParams_ArrayAutoDefaultFromItemsEnum(t *testing.T) {
	schema := Schema{"status": {Type: "array", Items: &Entry{Type: "string", Enum: []any{"open", "closed"}}}}
	got, err := ResolveParams(schema, nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, ok := got["status"]; !ok {
		t.Fatalf("expected auto-default for status from items.enum")
	}
}

func TestResolveParams_ExtraParamsPassThrough(t *testing.T) {
	schema := Schema{}
	got, err := ResolveParams(schema, nil, map[string]any{"unexpected": "value"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got["unexpected"] != "value" {
		t.Fatalf("unexpected = %v, want passthrough", got["unexpected"])
	}
}

func TestResolveParams_EnumRejectsOutOfList(t *testing.T) {
	schema := Schema{"status": {Type: "string", Enum: []any{"active", "inactive"}}}
	_, err := ResolveParams(schema, nil, map[string]any{"status": "deleted"})
	if err == nil {
		t.Fatal("expected validation error for out-of-enum value")
	}
}
