package alice

// Payload returns the minimal form of d carried by state notifications:
// id plus type and state of every capability and property, or id plus the
// error fields for an errored device.
func (d Device) Payload() Device {
	out := Device{ID: d.ID}
	if d.ErrorCode != "" {
		out.ErrorCode = d.ErrorCode
		out.ErrorMessage = d.ErrorMessage
		return out
	}

	out.Capabilities = make([]Capability, 0, len(d.Capabilities))
	for _, c := range d.Capabilities {
		out.Capabilities = append(out.Capabilities, Capability{Type: c.Type, State: c.State.deepCopy()})
	}
	out.Properties = make([]Property, 0, len(d.Properties))
	for _, p := range d.Properties {
		out.Properties = append(out.Properties, Property{Type: p.Type, State: p.State.deepCopy()})
	}
	return out
}

// WithoutState returns a copy of d with every capability and property state
// removed, as advertised by the device list endpoint.
func (d Device) WithoutState() Device {
	out := d.DeepCopy()
	for i := range out.Capabilities {
		out.Capabilities[i].State = nil
	}
	for i := range out.Properties {
		out.Properties[i].State = nil
	}
	return out
}

// EventValues returns the admissible event values declared in an event
// property's parameters.
func (p Property) EventValues() []string {
	return valuesOf(p.Parameters, "events")
}

// valuesOf collects the "value" field of each object in params[key].
func valuesOf(params map[string]any, key string) []string {
	list, ok := params[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := obj["value"].(string); ok {
			out = append(out, v)
		}
	}
	return out
}
