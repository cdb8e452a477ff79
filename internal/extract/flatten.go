// Package extract turns arbitrary-shaped JSON log records into a single
// comparable text string suitable for embedding.
package extract

import (
	"fmt"
	"sort"
	"strings"
)

// PathSeparator joins parent and child keys in flattened paths.
const PathSeparator = "."

// Field is a single leaf of a flattened record: a dot-joined key path and
// its value. Arrays are not descended into and appear as leaf values.
type Field struct {
	Path  string
	Value any
}

// Flatten recursively descends through nested maps and returns the record's
// leaves in a deterministic order (keys sorted per nesting level). Sequences
// are treated as leaf values; text buried inside arrays is not extracted.
// Duplicate paths keep the last value written.
func Flatten(record map[string]any) []Field {
	var fields []Field
	flattenInto(record, "", &fields)

	// Last-write-wins on path collisions while preserving first position.
	seen := make(map[string]int, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if i, ok := seen[f.Path]; ok {
			out[i].Value = f.Value
			continue
		}
		seen[f.Path] = len(out)
		out = append(out, f)
	}
	return out
}

func flattenInto(m map[string]any, prefix string, fields *[]Field) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + PathSeparator + k
		}
		if nested, ok := m[k].(map[string]any); ok {
			flattenInto(nested, path, fields)
			continue
		}
		*fields = append(*fields, Field{Path: path, Value: m[k]})
	}
}

// renderFields is the fallback rendering used when extraction finds no
// usable tokens: the whole flattened record as "{path:value, ...}".
func renderFields(fields []Field) string {
	if len(fields) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Path)
		b.WriteByte(':')
		b.WriteString(stringifyValue(f.Value))
	}
	b.WriteByte('}')
	return b.String()
}

// stringifyValue renders a leaf value for token emission.
func stringifyValue(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%v", v)
}
