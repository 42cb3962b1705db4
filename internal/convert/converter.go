package convert

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/alice-bridge/internal/topic"
)

// ValueHook post-processes a message -> value conversion.
// Its result replaces the computed value.
type ValueHook interface {
	ToValue(message string, computed any, data *topic.CommandData) any
}

// MessageHook post-processes a value -> message conversion.
// Its result replaces the computed message.
type MessageHook interface {
	ToMessage(value any, computed string, data *topic.CommandData) string
}

// Converter translates between MQTT wire messages and structured values.
//
// Conversion is deterministic and side-effect free; a Converter is safe for
// concurrent use.
type Converter struct {
	valueHook   ValueHook
	messageHook MessageHook
}

// Option configures a Converter.
type Option func(*Converter)

// WithValueHook installs an authoritative message -> value override.
func WithValueHook(h ValueHook) Option {
	return func(c *Converter) { c.valueHook = h }
}

// WithMessageHook installs an authoritative value -> message override.
func WithMessageHook(h MessageHook) Option {
	return func(c *Converter) { c.messageHook = h }
}

// New creates a Converter.
func New(opts ...Option) *Converter {
	c := &Converter{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ToValue converts a wire message to a structured value.
//
// Resolution order:
//  1. mapping entry whose key equals the message case-insensitively
//  2. the mapping's __default entry
//  3. "on"/"off" -> bool, a full number -> float64, a JSON object or
//     array -> decoded value with json.Number members, anything else ->
//     the lower-cased message
func (c *Converter) ToValue(message string, data *topic.CommandData) any {
	value := coerce(message, data)
	if c.valueHook != nil {
		return c.valueHook.ToValue(message, value, data)
	}
	return value
}

func coerce(message string, data *topic.CommandData) any {
	if data != nil {
		if v, ok := data.Mapping.Lookup(message); ok {
			return v
		}
		if v, ok := data.Mapping.Default(); ok {
			return v
		}
	}

	lower := strings.ToLower(message)
	switch lower {
	case "on":
		return true
	case "off":
		return false
	}

	if n, ok := parseNumber(message); ok {
		return n
	}

	trimmed := strings.TrimSpace(message)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if v, ok := decodeJSON(trimmed); ok {
			return v
		}
	}

	return lower
}

// decodeJSON decodes a whole object or array. Numbers inside stay
// json.Number so large integers survive a round trip.
func decodeJSON(s string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || v == nil || dec.More() {
		return nil, false
	}
	return v, true
}

// parseNumber accepts decimal numbers only; hex, NaN, Inf and empty strings
// stay strings.
func parseNumber(message string) (float64, bool) {
	s := strings.TrimSpace(message)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789+-.eE", r) {
			return 0, false
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ToMessage converts a structured value to its wire message.
//
// Resolution order:
//  1. lower-cased key of the first mapping entry (except __default) whose
//     value equals v
//  2. bool -> "on"/"off", object or array -> JSON, anything else -> its
//     lower-cased string form
func (c *Converter) ToMessage(value any, data *topic.CommandData) string {
	message := render(value, data)
	if c.messageHook != nil {
		return c.messageHook.ToMessage(value, message, data)
	}
	return message
}

func render(value any, data *topic.CommandData) string {
	if data != nil {
		if msg, ok := data.Mapping.MessageFor(value); ok {
			return msg
		}
	}

	switch v := value.(type) {
	case bool:
		if v {
			return "on"
		}
		return "off"
	case nil:
		return ""
	case string:
		return strings.ToLower(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case json.Number:
		return v.String()
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		b, err := json.Marshal(v)
		if err == nil && len(b) > 0 && (b[0] == '{' || b[0] == '[') {
			return string(b)
		}
		return strings.ToLower(fmt.Sprint(v))
	}
}
