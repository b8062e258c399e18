// Package querytemplate implements the C7 template compiler: it rewrites a
// `{{param}}`-marked SQL template plus a resolved parameter bundle into a
// positional prepared statement, including the IN/NOT IN array-operator
// rewrite.
package querytemplate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"dashboard-gateway/internal/paramschema"
)

// Compiled is the output of Compile: a positional-prepared statement.
type Compiled struct {
	Text string
	Args []any
}

// CompileError is raised when the template references a parameter the
// caller did not supply; the batch executor records this per-slug.
type CompileError struct {
	Message string
}

func (e *CompileError) Error() string { return e.Message }

var markerRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Compile scans template left-to-right for {{name}} markers, substituting
// each distinct name with a single positional placeholder $n (repeated
// occurrences of the same name reuse the placeholder already assigned to
// it), then rewrites IN(...)/NOT IN(...) around any placeholder bound to an
// array-typed parameter into = ANY(...)/<> ALL(...).
func Compile(template string, params map[string]any, schema paramschema.Schema) (*Compiled, error) {
	var (
		args       []any
		indexOf    = make(map[string]int) // name -> 1-based placeholder index
		arrayIndex = make(map[int]bool)
	)

	matches := markerRe.FindAllStringSubmatchIndex(template, -1)

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		nameStart, nameEnd := m[2], m[3]
		name := template[nameStart:nameEnd]

		b.WriteString(template[last:start])

		idx, known := indexOf[name]
		if !known {
			value, ok := params[name]
			if !ok {
				return nil, &CompileError{Message: fmt.Sprintf("Parâmetro '%s' não foi informado", name)}
			}
			args = append(args, value)
			idx = len(args)
			indexOf[name] = idx

			if isArray(value, schema, name) {
				arrayIndex[idx] = true
			}
		}

		b.WriteString("$")
		b.WriteString(strconv.Itoa(idx))
		last = end
	}
	b.WriteString(template[last:])

	text := b.String()
	for idx := range arrayIndex {
		text = rewriteArrayOperators(text, idx)
	}

	return &Compiled{Text: text, Args: args}, nil
}

func isArray(value any, schema paramschema.Schema, name string) bool {
	if _, ok := value.([]any); ok {
		return true
	}
	if entry, ok := schema[name]; ok && entry.Type == "array" {
		return true
	}
	return false
}

// rewriteArrayOperators applies the IN/NOT IN rewrite for a single
// placeholder index. NOT IN must be rewritten before IN: the substring
// "IN (...)" inside "NOT IN (...)" would otherwise match the plain-IN
// pattern first and leave a dangling "NOT" behind.
//
// The patterns are not context-aware: an IN (...) around the placeholder
// inside a SQL string literal or comment is rewritten as well.
func rewriteArrayOperators(text string, idx int) string {
	n := strconv.Itoa(idx)
	notIn := regexp.MustCompile(`(?i)NOT\s+IN\s*\(\s*\$` + n + `(::[A-Za-z_][A-Za-z0-9_]*(?:\[\])?)?\s*\)`)
	in := regexp.MustCompile(`(?i)\bIN\s*\(\s*\$` + n + `(::[A-Za-z_][A-Za-z0-9_]*(?:\[\])?)?\s*\)`)

	text = notIn.ReplaceAllString(text, "<> ALL($$"+n+"$1)")
	text = in.ReplaceAllString(text, "= ANY($$"+n+"$1)")
	return text
}
