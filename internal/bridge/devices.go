package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/alice-bridge/internal/alice"
	"github.com/nerrad567/alice-bridge/internal/catalog"
	"github.com/nerrad567/alice-bridge/internal/topic"
)

// Query answers a device state query. Every requested id yields one entry,
// in request order: the minimal payload of the reconciled device, or an
// error-only device.
func (b *Bridge) Query(ctx context.Context, user catalog.User, ids []string) []alice.Device {
	out := make([]alice.Device, 0, len(ids))
	for _, id := range ids {
		device, ok := b.catalog.UserDevice(user, id)
		if !ok {
			out = append(out, alice.NotFound(id, fmt.Sprintf("The device %q can not be found.", id)))
			continue
		}
		reconciled, err := b.reconciler.Reconcile(ctx, user, device)
		if err != nil {
			b.logger.Warn("query reconcile failed", "user", user.ID, "device", id, "error", err)
			out = append(out, alice.Unreachable(id, unreachableMessage(id)))
			continue
		}
		out = append(out, reconciled.Payload())
	}
	return out
}

// Action applies the requested capability states and reports one
// action_result per capability. Failures never abort sibling capabilities
// or devices.
func (b *Bridge) Action(ctx context.Context, user catalog.User, requested []alice.Device) []alice.Device {
	out := make([]alice.Device, 0, len(requested))
	for _, req := range requested {
		device, ok := b.catalog.UserDevice(user, req.ID)
		if !ok {
			out = append(out, alice.NotFound(req.ID, fmt.Sprintf("The device %q can not be found.", req.ID)))
			continue
		}

		result := alice.Device{ID: req.ID, Capabilities: make([]alice.Capability, 0, len(req.Capabilities))}
		var current *alice.Device
		for _, c := range req.Capabilities {
			state := alice.State{}
			if c.State != nil {
				state.Instance = c.State.Instance
			}
			state.ActionResult = b.applyCapability(ctx, user, device, c, &current)
			result.Capabilities = append(result.Capabilities, alice.Capability{Type: c.Type, State: &state})
		}
		out = append(out, result)
	}
	return out
}

func (b *Bridge) applyCapability(ctx context.Context, user catalog.User, device alice.Device, c alice.Capability, current **alice.Device) *alice.ActionResult {
	failed := &alice.ActionResult{
		Status:       alice.StatusError,
		ErrorCode:    alice.ErrorInvalidAction,
		ErrorMessage: fmt.Sprintf("Capability %q for the device %q can not be changed.", c.Type, device.ID),
	}
	if c.State == nil {
		return failed
	}

	ref := alice.CapabilityRef(c.Type, c.State.Instance)
	names := b.resolver.NamesForType(user.Email, device.Type, device.ID, ref)
	if names.CommandTopic == "" {
		return failed
	}

	var data *topic.CommandData
	if d, ok := b.resolver.CommandData(names.CommandTopic, device.Type, ref); ok {
		data = &d
	}

	value := c.State.Value
	if c.Type == alice.CapabilityRange && c.State.Relative {
		if *current == nil {
			r, err := b.reconciler.Reconcile(ctx, user, device)
			if err != nil {
				b.logger.Warn("reconciling before relative action failed", "device", device.ID, "error", err)
				return failed
			}
			*current = &r
		}
		if (*current).ErrorCode != "" {
			return &alice.ActionResult{
				Status:       alice.StatusError,
				ErrorCode:    alice.ErrorDeviceUnreachable,
				ErrorMessage: unreachableMessage(device.ID),
			}
		}

		base := currentValue(**current, ref)
		if base == nil {
			base = b.cachedValue(ctx, names.CommandTopic, data)
		}
		sum, ok := addRelative(value, base)
		if !ok {
			return &alice.ActionResult{
				Status:       alice.StatusError,
				ErrorCode:    alice.ErrorInvalidValue,
				ErrorMessage: fmt.Sprintf("The current %q value of the device %q is unknown.", c.State.Instance, device.ID),
			}
		}
		value = sum
	}

	message := b.converter.ToMessage(value, data)
	if err := b.publisher.Publish(names.CommandTopic, []byte(message), b.qos, false); err != nil {
		b.logger.Error("publishing action failed", "topic", names.CommandTopic, "error", err)
		return failed
	}
	b.logger.Debug("action published", "user", user.ID, "device", device.ID, "topic", names.CommandTopic)
	return &alice.ActionResult{Status: alice.StatusDone}
}

// cachedValue converts the last message seen on the command topic, or
// returns nil.
func (b *Bridge) cachedValue(ctx context.Context, commandTopic string, data *topic.CommandData) any {
	msg, ok, err := b.cache.Get(ctx, commandTopic)
	if err != nil {
		b.logger.Warn("reading command topic failed", "topic", commandTopic, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return b.converter.ToValue(msg, data)
}

func unreachableMessage(deviceID string) string {
	return fmt.Sprintf("The device %q is disconnected from power or the Internet.", deviceID)
}

// currentValue returns the reconciled value of ref, or nil.
func currentValue(d alice.Device, ref alice.Ref) any {
	for _, c := range d.Capabilities {
		if c.Type == ref.CapabilityType && c.State != nil && c.State.Instance == ref.CapabilityInstance {
			return c.State.Value
		}
	}
	return nil
}

// addRelative adds a relative delta to the current value. It fails unless
// both are numeric.
func addRelative(delta, current any) (float64, bool) {
	d, ok := toFloat(delta)
	if !ok {
		return 0, false
	}
	c, ok := toFloat(current)
	if !ok {
		return 0, false
	}
	return c + d, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
