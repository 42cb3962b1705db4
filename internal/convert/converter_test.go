package convert

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/nerrad567/alice-bridge/internal/topic"
)

func mappingData(t *testing.T, raw string) *topic.CommandData {
	t.Helper()
	var m topic.Mapping
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("Unmarshal(mapping) error = %v", err)
	}
	return &topic.CommandData{Mapping: m}
}

func TestConverter_ToValue(t *testing.T) {
	c := New()

	tests := []struct {
		name    string
		message string
		want    any
	}{
		{"on", "on", true},
		{"off upper", "OFF", false},
		{"integer", "40", 40.0},
		{"negative decimal", "-21.5", -21.5},
		{"padded number", " 7 ", 7.0},
		{"object", `{"Temp":21.5,"Mode":"Eco"}`, map[string]any{"Temp": json.Number("21.5"), "Mode": "Eco"}},
		{"trailing data", `{"a":1} {"b":2}`, `{"a":1} {"b":2}`},
		{"array", `["a","B"]`, []any{"a", "B"}},
		{"plain string lower-cased", "Heating", "heating"},
		{"empty stays string", "", ""},
		{"hex is not a number", "0x10", "0x10"},
		{"nan is not a number", "NaN", "nan"},
		{"broken json", `{"a":`, `{"a":`},
		{"json null", "null", "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.ToValue(tt.message, nil); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ToValue(%q) = %#v, want %#v", tt.message, got, tt.want)
			}
		})
	}
}

func TestConverter_ToMessage(t *testing.T) {
	c := New()

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"true", true, "on"},
		{"false", false, "off"},
		{"float integer", 50.0, "50"},
		{"float", 21.5, "21.5"},
		{"int", 7, "7"},
		{"string lower-cased", "Turbo", "turbo"},
		{"object", map[string]any{"Mode": "Eco"}, `{"Mode":"Eco"}`},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.ToMessage(tt.value, nil); got != tt.want {
				t.Errorf("ToMessage(%#v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestConverter_RoundTrip(t *testing.T) {
	c := New()

	values := []any{
		true,
		false,
		0.0,
		42.0,
		-17.0,
		map[string]any{"h": json.Number("10"), "s": json.Number("20"), "v": json.Number("30")},
	}

	for _, v := range values {
		msg := c.ToMessage(v, nil)
		if got := c.ToValue(msg, nil); !reflect.DeepEqual(got, v) {
			t.Errorf("ToValue(ToMessage(%#v)) = %#v (message %q)", v, got, msg)
		}
	}

	for _, m := range []string{"on", "off", "12", `{"a":1}`, `{"id":9007199254740993}`, `[12345678901234567890]`} {
		if got := c.ToMessage(c.ToValue(m, nil), nil); got != m {
			t.Errorf("ToMessage(ToValue(%q)) = %q", m, got)
		}
	}
}

func TestConverter_MappingPrecedence(t *testing.T) {
	c := New()
	data := mappingData(t, `{"LOW": "quiet", "high": "turbo", "__default": "auto"}`)

	tests := []struct {
		message string
		want    any
	}{
		{"low", "quiet"},
		{"HIGH", "turbo"},
		{"medium", "auto"},
		{"on", "auto"},
	}
	for _, tt := range tests {
		if got := c.ToValue(tt.message, data); got != tt.want {
			t.Errorf("ToValue(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}

	if got := c.ToMessage("quiet", data); got != "low" {
		t.Errorf("ToMessage(quiet) = %q, want low", got)
	}
	// __default is never used in reverse.
	if got := c.ToMessage("auto", data); got != "auto" {
		t.Errorf("ToMessage(auto) = %q, want auto", got)
	}
}

func TestConverter_MappingWithoutDefaultFallsBack(t *testing.T) {
	c := New()
	data := mappingData(t, `{"1": true, "0": false}`)

	if got := c.ToValue("1", data); got != true {
		t.Errorf("ToValue(1) = %v, want true", got)
	}
	if got := c.ToValue("5", data); got != 5.0 {
		t.Errorf("ToValue(5) = %v, want 5 via coercion", got)
	}
	if got := c.ToMessage(false, data); got != "0" {
		t.Errorf("ToMessage(false) = %q, want 0", got)
	}
}

type upperHook struct{}

func (upperHook) ToValue(message string, computed any, _ *topic.CommandData) any {
	if message == "special" {
		return 99.0
	}
	return computed
}

func (upperHook) ToMessage(value any, computed string, _ *topic.CommandData) string {
	return "X-" + computed
}

func TestConverter_Hooks(t *testing.T) {
	c := New(WithValueHook(upperHook{}), WithMessageHook(upperHook{}))

	if got := c.ToValue("special", nil); got != 99.0 {
		t.Errorf("ToValue(special) = %v, want hook result", got)
	}
	if got := c.ToValue("on", nil); got != true {
		t.Errorf("ToValue(on) = %v, want computed value passed through", got)
	}
	if got := c.ToMessage(true, nil); got != "X-on" {
		t.Errorf("ToMessage(true) = %q, want X-on", got)
	}
}
