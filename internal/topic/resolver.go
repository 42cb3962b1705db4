package topic

import (
	"fmt"

	"github.com/nerrad567/alice-bridge/internal/alice"
)

// DeviceTypes resolves the declared type of a user's device.
// userName is the value substituted for <user_name> (the user's e-mail).
type DeviceTypes interface {
	DeviceType(userName, deviceID string) (string, bool)
}

// Resolver maps (user, device, capability/property reference) to concrete
// topics and back, using the topic templates document.
//
// Templates are compiled once in NewResolver; a Resolver is read-only
// afterwards and safe for concurrent use.
type Resolver struct {
	cfg       Config
	devices   DeviceTypes
	templates []compiledTemplate
}

type compiledTemplate struct {
	tpl       *Template
	state     *pattern
	config    *pattern
	available *pattern
	commands  []*pattern
}

// NewResolver compiles every template in cfg.
func NewResolver(cfg Config, devices DeviceTypes) (*Resolver, error) {
	r := &Resolver{cfg: cfg, devices: devices}
	for i := range r.cfg.Topics {
		tpl := &r.cfg.Topics[i]
		ct := compiledTemplate{tpl: tpl}

		var err error
		if ct.state, err = compilePattern(tpl.StateTopic); err != nil {
			return nil, fmt.Errorf("%w: %s stateTopic: %v", ErrInvalidTemplate, tpl.DeviceType, err)
		}
		if ct.config, err = compilePattern(tpl.ConfigTopic); err != nil {
			return nil, fmt.Errorf("%w: %s configTopic: %v", ErrInvalidTemplate, tpl.DeviceType, err)
		}
		if ct.available, err = compilePattern(tpl.AvailableTopic); err != nil {
			return nil, fmt.Errorf("%w: %s availableTopic: %v", ErrInvalidTemplate, tpl.DeviceType, err)
		}
		for _, cmd := range tpl.CommandTopics {
			p, err := compilePattern(cmd.Topic)
			if err != nil {
				return nil, fmt.Errorf("%w: %s command %q: %v", ErrInvalidTemplate, tpl.DeviceType, cmd.Topic, err)
			}
			ct.commands = append(ct.commands, p)
		}
		r.templates = append(r.templates, ct)
	}
	return r, nil
}

// SubscribeTopic returns the wildcard topic the bridge subscribes to.
func (r *Resolver) SubscribeTopic() string {
	return r.cfg.SubscribeTopic
}

// Names looks up the declared type of the device and resolves its topics.
// Unknown devices, unknown types and unmatched refs produce empty strings.
func (r *Resolver) Names(userName, deviceID string, ref alice.Ref) Names {
	if r.devices == nil {
		return Names{}
	}
	deviceType, ok := r.devices.DeviceType(userName, deviceID)
	if !ok {
		return Names{}
	}
	return r.NamesForType(userName, deviceType, deviceID, ref)
}

// NamesForType resolves topics for a device whose type is already known.
func (r *Resolver) NamesForType(userName, deviceType, deviceID string, ref alice.Ref) Names {
	var names Names
	if deviceType == "" {
		return names
	}
	for _, ct := range r.templates {
		if ct.tpl.DeviceType != deviceType {
			continue
		}
		names.StateTopic = Substitute(ct.tpl.StateTopic, userName, deviceID)
		names.ConfigTopic = Substitute(ct.tpl.ConfigTopic, userName, deviceID)
		names.AvailableTopic = Substitute(ct.tpl.AvailableTopic, userName, deviceID)
		if !ref.IsZero() {
			for _, cmd := range ct.tpl.CommandTopics {
				if MatchRef(cmd, ref) {
					names.CommandTopic = Substitute(cmd.Topic, userName, deviceID)
					break
				}
			}
		}
		return names
	}
	return names
}

// Classify reports whether the concrete topic matches a slot of the given
// type in any template.
func (r *Resolver) Classify(concrete string, typ Type) bool {
	for _, ct := range r.templates {
		switch typ {
		case TypeState:
			if _, _, ok := ct.state.match(concrete); ok {
				return true
			}
		case TypeConfig:
			if _, _, ok := ct.config.match(concrete); ok {
				return true
			}
		case TypeAvailable:
			if _, _, ok := ct.available.match(concrete); ok {
				return true
			}
		case TypeCommand:
			for _, p := range ct.commands {
				if _, _, ok := p.match(concrete); ok {
					return true
				}
			}
		}
	}
	return false
}

// Reverse finds the first template slot matching the concrete topic,
// checking state, config, available and then command slots of each template.
// A non-zero ref restricts command slots to descriptors bound to it.
//
// Several templates may share a pattern. When the matched device has a
// declared type, a match from a template of that type wins over an earlier
// match from another template.
func (r *Resolver) Reverse(concrete string, ref alice.Ref) (Match, bool) {
	var (
		first Match
		found bool
	)
	for _, ct := range r.templates {
		m, ok := ct.reverse(concrete, ref)
		if !ok {
			continue
		}
		if r.declaredType(m.UserName, m.DeviceID) == m.DeviceType {
			return m, true
		}
		if !found {
			first, found = m, true
		}
	}
	return first, found
}

// declaredType returns the catalogue type of the device, or "".
func (r *Resolver) declaredType(userName, deviceID string) string {
	if r.devices == nil {
		return ""
	}
	t, _ := r.devices.DeviceType(userName, deviceID)
	return t
}

func (ct compiledTemplate) reverse(concrete string, ref alice.Ref) (Match, bool) {
	slots := []struct {
		typ Type
		p   *pattern
	}{
		{TypeState, ct.state},
		{TypeConfig, ct.config},
		{TypeAvailable, ct.available},
	}
	for _, s := range slots {
		if user, device, ok := s.p.match(concrete); ok {
			return Match{Type: s.typ, UserName: user, DeviceID: device, DeviceType: ct.tpl.DeviceType}, true
		}
	}

	for i, p := range ct.commands {
		user, device, ok := p.match(concrete)
		if !ok {
			continue
		}
		cmd := &ct.tpl.CommandTopics[i]
		if !ref.IsZero() && !MatchRef(*cmd, ref) {
			continue
		}
		return Match{Type: TypeCommand, UserName: user, DeviceID: device, DeviceType: ct.tpl.DeviceType, Command: cmd}, true
	}
	return Match{}, false
}

// CommandData returns the metadata of a concrete command topic, searching
// only templates of deviceType. A non-zero ref restricts the descriptors.
func (r *Resolver) CommandData(concrete, deviceType string, ref alice.Ref) (CommandData, bool) {
	for _, ct := range r.templates {
		if ct.tpl.DeviceType != deviceType {
			continue
		}
		for i, p := range ct.commands {
			user, device, ok := p.match(concrete)
			if !ok {
				continue
			}
			cmd := ct.tpl.CommandTopics[i]
			if !ref.IsZero() && !MatchRef(cmd, ref) {
				continue
			}
			return newCommandData(cmd, deviceType, user, device), true
		}
	}
	return CommandData{}, false
}

func newCommandData(cmd CommandTopic, deviceType, userName, deviceID string) CommandData {
	data := CommandData{
		UserName:   userName,
		DeviceID:   deviceID,
		DeviceType: deviceType,
		Mapping:    cmd.Mapping,
		StateKeys:  cmd.StateKeys,
		ConfigKey:  cmd.ConfigKey,
	}
	if cmd.Capability != nil {
		data.CapabilityType = cmd.Capability.Type
		data.CapabilityInstance = cmd.Capability.StateInstance
	}
	if cmd.Property != nil {
		data.PropertyType = cmd.Property.Type
		data.PropertyInstance = cmd.Property.StateInstance
	}
	return data
}

// StateKeys returns the union of the state keys configured on the command
// topics of deviceType, in declaration order.
func (r *Resolver) StateKeys(deviceType string) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, ct := range r.templates {
		if ct.tpl.DeviceType != deviceType {
			continue
		}
		for _, cmd := range ct.tpl.CommandTopics {
			for _, k := range cmd.StateKeys {
				if !seen[k] {
					seen[k] = true
					keys = append(keys, k)
				}
			}
		}
	}
	return keys
}

// MatchRef reports whether the descriptor is bound to ref. A capability
// binding is compared only with the capability fields of ref and a property
// binding only with its property fields.
func MatchRef(cmd CommandTopic, ref alice.Ref) bool {
	if ref.CapabilityType != "" && ref.CapabilityInstance != "" && cmd.Capability != nil {
		if cmd.Capability.Type == ref.CapabilityType && cmd.Capability.StateInstance == ref.CapabilityInstance {
			return true
		}
	}
	if ref.PropertyType != "" && ref.PropertyInstance != "" && cmd.Property != nil {
		if cmd.Property.Type == ref.PropertyType && cmd.Property.StateInstance == ref.PropertyInstance {
			return true
		}
	}
	return false
}
