package topic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultKey is the mapping entry used when no other key matches a message.
const DefaultKey = "__default"

// MappingEntry is one message -> value pair.
type MappingEntry struct {
	Message string
	Value   any
}

// Mapping is an ordered message <-> value table.
//
// Order is preserved from the JSON document so that reverse lookups pick the
// first declared message for a value.
type Mapping []MappingEntry

// UnmarshalJSON decodes a JSON object keeping key order.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: messageValueMapping must be an object", ErrInvalidTemplate)
	}

	var out Mapping
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: unexpected mapping key %v", ErrInvalidTemplate, tok)
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		out = append(out, MappingEntry{Message: key, Value: normalise(raw)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*m = out
	return nil
}

// MarshalJSON encodes the mapping as a JSON object in declaration order.
func (m Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Message)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Lookup returns the value mapped to message, comparing keys case-insensitively.
func (m Mapping) Lookup(message string) (any, bool) {
	lower := strings.ToLower(message)
	for _, e := range m {
		if e.Message == DefaultKey {
			continue
		}
		if strings.ToLower(e.Message) == lower {
			return e.Value, true
		}
	}
	return nil, false
}

// Default returns the __default entry.
func (m Mapping) Default() (any, bool) {
	for _, e := range m {
		if e.Message == DefaultKey {
			return e.Value, true
		}
	}
	return nil, false
}

// MessageFor returns the lower-cased message of the first non-default entry
// whose value equals v.
func (m Mapping) MessageFor(v any) (string, bool) {
	want := normalise(v)
	for _, e := range m {
		if e.Message == DefaultKey {
			continue
		}
		if equalValues(e.Value, want) {
			return strings.ToLower(e.Message), true
		}
	}
	return "", false
}

// normalise converts json.Number and Go numeric types to float64 so that
// mapping values compare equal to decoded request values.
func normalise(v any) any {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalise(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalise(item)
		}
		return out
	default:
		return v
	}
}

func equalValues(a, b any) bool {
	switch av := a.(type) {
	case map[string]any, []any:
		aj, err1 := json.Marshal(av)
		bj, err2 := json.Marshal(b)
		return err1 == nil && err2 == nil && bytes.Equal(aj, bj)
	default:
		return a == b
	}
}
