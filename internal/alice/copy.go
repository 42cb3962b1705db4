package alice

// DeepCopy returns a copy of d sharing no mutable memory with it.
func (d Device) DeepCopy() Device {
	out := d
	out.CustomData = copyMap(d.CustomData)
	if d.DeviceInfo != nil {
		info := *d.DeviceInfo
		out.DeviceInfo = &info
	}
	if d.Capabilities != nil {
		out.Capabilities = make([]Capability, len(d.Capabilities))
		for i, c := range d.Capabilities {
			out.Capabilities[i] = c.DeepCopy()
		}
	}
	if d.Properties != nil {
		out.Properties = make([]Property, len(d.Properties))
		for i, p := range d.Properties {
			out.Properties[i] = p.DeepCopy()
		}
	}
	return out
}

// DeepCopy returns a copy of c sharing no mutable memory with it.
func (c Capability) DeepCopy() Capability {
	out := c
	out.Retrievable = copyBool(c.Retrievable)
	out.Reportable = copyBool(c.Reportable)
	out.Parameters = copyMap(c.Parameters)
	out.State = c.State.deepCopy()
	return out
}

// DeepCopy returns a copy of p sharing no mutable memory with it.
func (p Property) DeepCopy() Property {
	out := p
	out.Retrievable = copyBool(p.Retrievable)
	out.Reportable = copyBool(p.Reportable)
	out.Parameters = copyMap(p.Parameters)
	out.State = p.State.deepCopy()
	return out
}

func (s *State) deepCopy() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Value = copyValue(s.Value)
	if s.ActionResult != nil {
		r := *s.ActionResult
		out.ActionResult = &r
	}
	return &out
}

func copyBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
