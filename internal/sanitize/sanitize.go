// Package sanitize normalises heterogeneous row values returned by a tenant
// query into JSON-safe forms, recursively.
package sanitize

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Value converts a single driver-returned value into a JSON-safe form:
// big integers become a safe int64 or, past the float64-safe-integer range,
// a decimal string; timestamps become ISO 8601; arrays and maps are
// recursed into structurally; everything else passes through.
func Value(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case pgtype.Numeric:
		return numeric(t)
	case [16]byte:
		return uuid.UUID(t).String()
	case uuid.UUID:
		return t.String()
	case int64:
		return safeInt(t)
	case int32:
		return int64(t)
	case int:
		return safeInt(int64(t))
	case []byte:
		// Best-effort: treat as text; binary blobs are not part of this
		// domain's row shapes.
		return string(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Value(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Value(e)
		}
		return out
	default:
		return v
	}
}

// Row sanitises every value in a result row keyed by column name.
func Row(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = Value(v)
	}
	return out
}

// Rows sanitises every row in a result set.
func Rows(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = Row(r)
	}
	return out
}

// safeInt returns n unchanged if it round-trips through float64 without
// precision loss (the JSON-number safe integer range), else its decimal
// string form.
func safeInt(n int64) any {
	const maxSafe = int64(1) << 53
	if n <= maxSafe && n >= -maxSafe {
		return n
	}
	return decimalString(n)
}

func decimalString(n int64) string {
	b, _ := json.Marshal(n)
	s := string(b)
	// json.Marshal of an int64 never quotes; strip nothing, just return as
	// a string value rather than a JSON number so large magnitudes survive
	// round-trip through JS's Number.
	return s
}

func numeric(n pgtype.Numeric) any {
	if !n.Valid {
		return nil
	}
	f, err := n.Float64Value()
	if err == nil && f.Valid && !math.IsInf(f.Float64, 0) {
		// Numerics that fit cleanly in a float64 are returned as numbers;
		// callers that need exact decimal precision should read the
		// column as text at the query layer instead.
		return f.Float64
	}
	s, serr := n.Value()
	if serr == nil {
		if str, ok := s.(string); ok {
			return str
		}
	}
	return nil
}
