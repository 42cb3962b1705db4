package alice

import (
	"encoding/json"
	"testing"
)

func sampleDevice() Device {
	return Device{
		ID:   "lamp1",
		Name: "Lamp",
		Type: "devices.types.light",
		Capabilities: []Capability{
			{
				Type:       CapabilityRange,
				Parameters: map[string]any{"instance": "brightness", "range": map[string]any{"min": 1.0, "max": 100.0}},
				State:      &State{Instance: "brightness", Value: 40.0},
			},
			{
				Type:       CapabilityMode,
				Parameters: map[string]any{"modes": []any{map[string]any{"value": "eco"}, map[string]any{"value": "turbo"}}},
				State:      &State{Instance: "fan_speed", Value: "eco"},
			},
		},
		Properties: []Property{
			{
				Type:       PropertyEvent,
				Parameters: map[string]any{"events": []any{map[string]any{"value": "opened"}, map[string]any{"value": "closed"}}},
				State:      &State{Instance: "open", Value: "closed"},
			},
		},
	}
}

func TestDevice_DeepCopy(t *testing.T) {
	orig := sampleDevice()
	cp := orig.DeepCopy()

	cp.Capabilities[0].State.Value = 99.0
	cp.Capabilities[0].Parameters["range"].(map[string]any)["max"] = 10.0
	cp.Capabilities[1].Parameters["modes"].([]any)[0].(map[string]any)["value"] = "quiet"
	cp.Properties[0].State.Value = "opened"

	if orig.Capabilities[0].State.Value != 40.0 {
		t.Errorf("original state mutated: %v", orig.Capabilities[0].State.Value)
	}
	if orig.Capabilities[0].Parameters["range"].(map[string]any)["max"] != 100.0 {
		t.Error("original nested parameters mutated")
	}
	if got := orig.Capabilities[1].Parameters["modes"].([]any)[0].(map[string]any)["value"]; got != "eco" {
		t.Errorf("original modes mutated: %v", got)
	}
	if orig.Properties[0].State.Value != "closed" {
		t.Error("original property state mutated")
	}
}

func TestDevice_Payload(t *testing.T) {
	payload := sampleDevice().Payload()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if _, ok := raw["name"]; ok {
		t.Error("payload should not carry name")
	}
	caps := raw["capabilities"].([]any)
	if len(caps) != 2 {
		t.Fatalf("len(capabilities) = %d, want 2", len(caps))
	}
	first := caps[0].(map[string]any)
	if _, ok := first["parameters"]; ok {
		t.Error("payload capability should not carry parameters")
	}
	if first["state"].(map[string]any)["value"] != 40.0 {
		t.Errorf("capability state = %v", first["state"])
	}
}

func TestDevice_PayloadErrored(t *testing.T) {
	payload := Unreachable("lamp1", "offline").Payload()

	if payload.ErrorCode != ErrorDeviceUnreachable || payload.ErrorMessage != "offline" {
		t.Errorf("Payload() = %+v", payload)
	}
	if payload.Capabilities != nil || payload.Properties != nil {
		t.Error("errored payload must not carry capabilities or properties")
	}
}

func TestDevice_WithoutState(t *testing.T) {
	orig := sampleDevice()
	stripped := orig.WithoutState()

	for _, c := range stripped.Capabilities {
		if c.State != nil {
			t.Errorf("capability %s still has state", c.Type)
		}
	}
	if stripped.Properties[0].State != nil {
		t.Error("property still has state")
	}
	if orig.Capabilities[0].State == nil {
		t.Error("original lost its state")
	}
}

func TestValuesOf(t *testing.T) {
	d := sampleDevice()

	if got := d.Properties[0].EventValues(); len(got) != 2 || got[0] != "opened" || got[1] != "closed" {
		t.Errorf("EventValues() = %v", got)
	}
	if got := (Property{}).EventValues(); got != nil {
		t.Errorf("EventValues() on empty parameters = %v, want nil", got)
	}
}

func TestState_FalseValueIsSerialised(t *testing.T) {
	data, err := json.Marshal(State{Instance: "on", Value: false})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"instance":"on","value":false}` {
		t.Errorf("Marshal() = %s", data)
	}
}
