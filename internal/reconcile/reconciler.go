package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/alice-bridge/internal/alice"
	"github.com/nerrad567/alice-bridge/internal/catalog"
	"github.com/nerrad567/alice-bridge/internal/convert"
	"github.com/nerrad567/alice-bridge/internal/topic"
)

// Messages reads cached topic messages. *topiccache.Cache satisfies it.
type Messages interface {
	Get(ctx context.Context, topic string) (string, bool, error)
	StateValue(ctx context.Context, topic string, keys []string) (string, bool, error)
}

// AvailabilityHook may override the computed availability of a device.
type AvailabilityHook interface {
	Available(ctx context.Context, user catalog.User, device alice.Device, names topic.Names, available bool) bool
}

// Options tune a single reconciliation.
type Options struct {
	// StateFallback reads values from the state topic JSON when the
	// command topic has no cached message.
	StateFallback bool

	// FilterModes narrows mode capabilities to the modes listed on the
	// config topic.
	FilterModes bool
}

// Reconciler builds device snapshots. It holds no mutable state and is
// safe for concurrent use.
type Reconciler struct {
	resolver     *topic.Resolver
	messages     Messages
	converter    *convert.Converter
	defaults     Options
	availability AvailabilityHook
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithAvailabilityHook installs an availability override.
func WithAvailabilityHook(h AvailabilityHook) Option {
	return func(r *Reconciler) { r.availability = h }
}

// New creates a Reconciler. defaults apply to Reconcile.
func New(resolver *topic.Resolver, messages Messages, converter *convert.Converter, defaults Options, opts ...Option) *Reconciler {
	r := &Reconciler{
		resolver:  resolver,
		messages:  messages,
		converter: converter,
		defaults:  defaults,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile returns the live snapshot of device using the default options.
// The declared device is never modified.
func (r *Reconciler) Reconcile(ctx context.Context, user catalog.User, device alice.Device) (alice.Device, error) {
	return r.ReconcileWith(ctx, user, device, r.defaults)
}

// ReconcileWith is Reconcile with explicit options.
func (r *Reconciler) ReconcileWith(ctx context.Context, user catalog.User, device alice.Device, opts Options) (alice.Device, error) {
	if !user.OwnsDevice(device.ID) {
		return alice.Device{}, fmt.Errorf("%w: %s for user %s", ErrDeviceNotFound, device.ID, user.ID)
	}

	available, err := r.isAvailable(ctx, user, device)
	if err != nil {
		return alice.Device{}, err
	}
	if !available {
		return alice.Unreachable(device.ID,
			fmt.Sprintf("The device %q is disconnected from power or the Internet.", device.ID)), nil
	}

	out := device.DeepCopy()

	for i := range out.Capabilities {
		c := &out.Capabilities[i]
		if c.State == nil {
			continue
		}
		ref := alice.CapabilityRef(c.Type, c.State.Instance)
		names, data, err := r.fill(ctx, user, out, ref, c.State, opts)
		if err != nil {
			return alice.Device{}, err
		}
		if opts.FilterModes && c.Type == alice.CapabilityMode && data != nil && data.ConfigKey != "" {
			if err := r.filterModes(ctx, c, names.ConfigTopic, data); err != nil {
				return alice.Device{}, err
			}
		}
	}

	props := make([]alice.Property, 0, len(out.Properties))
	for i := range out.Properties {
		p := out.Properties[i]
		if p.State != nil {
			ref := alice.PropertyRef(p.Type, p.State.Instance)
			if _, _, err := r.fill(ctx, user, out, ref, p.State, opts); err != nil {
				return alice.Device{}, err
			}
		}
		if p.Type == alice.PropertyEvent && !validEvent(p) {
			continue
		}
		props = append(props, p)
	}
	if out.Properties != nil {
		out.Properties = props
	}

	return out, nil
}

func (r *Reconciler) isAvailable(ctx context.Context, user catalog.User, device alice.Device) (bool, error) {
	names := r.resolver.NamesForType(user.Email, device.Type, device.ID, alice.Ref{})

	available := false
	if names.StateTopic != "" {
		msg, ok, err := r.messages.Get(ctx, names.StateTopic)
		if err != nil {
			return false, fmt.Errorf("checking availability of %s: %w", device.ID, err)
		}
		available = ok && msg != ""
	}

	if r.availability != nil {
		available = r.availability.Available(ctx, user, device, names, available)
	}
	return available, nil
}

// fill resolves the cached message for ref and writes its value into state.
func (r *Reconciler) fill(ctx context.Context, user catalog.User, device alice.Device, ref alice.Ref, state *alice.State, opts Options) (topic.Names, *topic.CommandData, error) {
	names := r.resolver.NamesForType(user.Email, device.Type, device.ID, ref)

	var data *topic.CommandData
	if names.CommandTopic != "" && device.Type != "" {
		if d, ok := r.resolver.CommandData(names.CommandTopic, device.Type, ref); ok {
			data = &d
		}
	}

	var (
		msg string
		ok  bool
		err error
	)
	if names.CommandTopic != "" {
		msg, ok, err = r.messages.Get(ctx, names.CommandTopic)
		if err != nil {
			return names, data, fmt.Errorf("reading %s: %w", names.CommandTopic, err)
		}
	}
	if !ok && data != nil && opts.StateFallback {
		msg, ok, err = r.messages.StateValue(ctx, names.StateTopic, data.StateKeys)
		if err != nil {
			return names, data, fmt.Errorf("reading %s: %w", names.StateTopic, err)
		}
	}

	if ok {
		state.Value = r.converter.ToValue(msg, data)
	}
	return names, data, nil
}

// filterModes keeps the declared modes that the config topic lists under
// data.ConfigKey. Without a live list the declared modes are kept.
func (r *Reconciler) filterModes(ctx context.Context, c *alice.Capability, configTopic string, data *topic.CommandData) error {
	if configTopic == "" || c.Parameters == nil {
		return nil
	}
	msg, ok, err := r.messages.Get(ctx, configTopic)
	if err != nil {
		return fmt.Errorf("reading %s: %w", configTopic, err)
	}
	if !ok {
		return nil
	}

	var cfg map[string]json.RawMessage
	if err := json.Unmarshal([]byte(msg), &cfg); err != nil {
		return nil //nolint:nilerr // A malformed config topic leaves modes untouched
	}
	var options []any
	if err := json.Unmarshal(cfg[data.ConfigKey], &options); err != nil {
		return nil //nolint:nilerr // Same as above
	}

	live := make(map[string]bool, len(options))
	for _, o := range options {
		s, isString := o.(string)
		if !isString {
			b, _ := json.Marshal(o) //nolint:errcheck // Decoded JSON always re-encodes
			s = string(b)
		}
		live[fmt.Sprint(r.converter.ToValue(s, data))] = true
	}

	declared, _ := c.Parameters["modes"].([]any)
	kept := make([]any, 0, len(declared))
	for _, m := range declared {
		obj, ok := m.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := obj["value"].(string); ok && live[v] {
			kept = append(kept, obj)
		}
	}
	c.Parameters["modes"] = kept
	return nil
}

// validEvent reports whether an event property's value is one of its
// declared events.
func validEvent(p alice.Property) bool {
	if p.State == nil {
		return false
	}
	v, ok := p.State.Value.(string)
	if !ok {
		return false
	}
	for _, e := range p.EventValues() {
		if e == v {
			return true
		}
	}
	return false
}
