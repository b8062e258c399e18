// Package paramschema implements the C6 parameter validator: coercion,
// defaulting, and auto-defaulting of a caller-supplied parameter bundle
// against a per-query JSON schema.
package paramschema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Entry is a single declared parameter (ParamSchemaEntry in the data model).
type Entry struct {
	Type     string   `json:"type"`
	Required bool     `json:"required,omitempty"`
	Enum     []any    `json:"enum,omitempty"`
	Minimum  *float64 `json:"minimum,omitempty"`
	Maximum  *float64 `json:"maximum,omitempty"`
	Items    *Entry   `json:"items,omitempty"`
	Default  any      `json:"default,omitempty"`
}

// Schema is the name → Entry map declared on a chart or table.
type Schema map[string]Entry

// ValidationError is returned when a parameter bundle fails validation; the
// batch executor (C8) records its Error() string per-slug rather than
// aborting the request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var (
	startNameRe = regexp.MustCompile(`(?i)inicio|início|start|begin`)
	endNameRe   = regexp.MustCompile(`(?i)fim|final|end`)
)

// ResolveParams computes the effective parameter bundle for a single
// chart/table invocation: for every name declared in schema, it chooses a
// value by precedence (provided > defaults > auto-default), validates and
// coerces it by declared type, and fails on a missing required value.
// Extra names present in provided but absent from schema pass through
// unmodified.
func ResolveParams(schema Schema, defaults map[string]any, provided map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(provided)+len(schema))

	for name, entry := range schema {
		value, has := pick(name, defaults, provided)
		if !has {
			value, has = autoDefault(name, entry)
		}

		if !has {
			if entry.Required {
				return nil, &ValidationError{Message: fmt.Sprintf("Parâmetro obrigatório ausente: %s", name)}
			}
			continue
		}

		coerced, err := coerce(name, entry, value)
		if err != nil {
			return nil, err
		}
		out[name] = coerced
	}

	for name, v := range provided {
		if _, declared := schema[name]; !declared {
			out[name] = v
		}
	}

	return out, nil
}

func pick(name string, defaults, provided map[string]any) (any, bool) {
	if v, ok := provided[name]; ok && v != nil {
		return v, true
	}
	if v, ok := defaults[name]; ok && v != nil {
		return v, true
	}
	return nil, false
}

func autoDefault(name string, entry Entry) (any, bool) {
	switch entry.Type {
	case "date":
		now := time.Now().UTC()
		switch {
		case startNameRe.MatchString(name):
			return now.AddDate(0, 0, -30).Format("2006-01-02"), true
		default:
			// Both the unconditional default and the explicit "end"-named
			// case resolve to today; only the start-ish names subtract 30
			// days, matching the source's name-coupled behaviour.
			_ = endNameRe
			return now.Format("2006-01-02"), true
		}
	case "number":
		if entry.Minimum != nil {
			return *entry.Minimum, true
		}
		if entry.Maximum != nil && *entry.Maximum < 1000 {
			return *entry.Maximum, true
		}
		return float64(0), true
	case "array":
		if entry.Items != nil && len(entry.Items.Enum) > 0 {
			return entry.Items.Enum, true
		}
		return nil, false
	default:
		return nil, false
	}
}

func coerce(name string, entry Entry, value any) (any, error) {
	switch entry.Type {
	case "number":
		return coerceNumber(name, entry, value)
	case "date":
		return coerceDate(name, value)
	case "boolean":
		return coerceBool(name, value)
	case "array":
		return coerceArray(name, entry, value)
	default:
		return coerceString(name, entry, value)
	}
}

func coerceNumber(name string, entry Entry, value any) (float64, error) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, &ValidationError{Message: fmt.Sprintf("Parâmetro '%s' deve ser numérico", name)}
		}
		f = parsed
	default:
		return 0, &ValidationError{Message: fmt.Sprintf("Parâmetro '%s' deve ser numérico", name)}
	}
	if entry.Minimum != nil && f < *entry.Minimum {
		return 0, &ValidationError{Message: fmt.Sprintf("Parâmetro '%s' abaixo do mínimo permitido", name)}
	}
	if entry.Maximum != nil && f > *entry.Maximum {
		return 0, &ValidationError{Message: fmt.Sprintf("Parâmetro '%s' acima do máximo permitido", name)}
	}
	if len(entry.Enum) > 0 && !enumContains(entry.Enum, f) {
		return 0, &ValidationError{Message: fmt.Sprintf("Parâmetro '%s' fora da lista de valores permitidos", name)}
	}
	return f, nil
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func coerceDate(name string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", &ValidationError{Message: fmt.Sprintf("Parâmetro '%s' deve ser uma data", name)}
	}
	if len(s) == 10 {
		if _, err := time.Parse("2006-01-02", s); err == nil {
			return s, nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", &ValidationError{Message: fmt.Sprintf("Parâmetro '%s' não é uma data válida", name)}
}

func coerceBool(name string, value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return false, &ValidationError{Message: fmt.Sprintf("Parâmetro '%s' deve ser booleano", name)}
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	default:
		return false, &ValidationError{Message: fmt.Sprintf("Parâmetro '%s' deve ser booleano", name)}
	}
}

func coerceString(name string, entry Entry, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprint(value)
	}
	if len(entry.Enum) > 0 && !enumContains(entry.Enum, s) {
		return "", &ValidationError{Message: fmt.Sprintf("Parâmetro '%s' fora da lista de valores permitidos", name)}
	}
	return s, nil
}

func coerceArray(name string, entry Entry, value any) ([]any, error) {
	var raw []any
	switch v := value.(type) {
	case []any:
		raw = v
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, &ValidationError{Message: fmt.Sprintf("Parâmetro '%s' deve ser uma lista", name)}
		}
		for _, part := range strings.Split(trimmed, ",") {
			raw = append(raw, strings.TrimSpace(part))
		}
	default:
		return nil, &ValidationError{Message: fmt.Sprintf("Parâmetro '%s' deve ser uma lista", name)}
	}

	if entry.Items == nil {
		return raw, nil
	}

	out := make([]any, len(raw))
	for i, elem := range raw {
		coerced, err := coerce(name, *entry.Items, elem)
		if err != nil {
			return nil, err
		}
		out[i] = coerced
	}
	return out, nil
}

func enumContains(enum []any, value any) bool {
	for _, e := range enum {
		switch ev := e.(type) {
		case float64:
			if fv, ok := value.(float64); ok && fv == ev {
				return true
			}
		case string:
			if sv, ok := value.(string); ok && sv == ev {
				return true
			}
		default:
			if e == value {
				return true
			}
		}
	}
	return false
}
