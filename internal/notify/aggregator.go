package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/alice-bridge/internal/alice"
	"github.com/nerrad567/alice-bridge/internal/catalog"
	"github.com/nerrad567/alice-bridge/internal/schedule"
)

// Event channels published to the Broadcaster.
const (
	ChannelStateChanged  = "device.state_changed"
	ChannelSkillCallback = "skill.callback"
)

const defaultWindow = 3 * time.Second

// Platform receives callbacks. *SkillClient satisfies it.
type Platform interface {
	State(ctx context.Context, userID string, devices []alice.Device) (*Response, error)
	Discovery(ctx context.Context, userID string) (*Response, error)
}

// Recorder stores delivered device states, for example as telemetry.
type Recorder interface {
	WriteDeviceStates(userID string, devices []alice.Device)
}

// Broadcaster fans events out to live subscribers.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Logger is the logging interface used by the aggregator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StateChangedEvent is broadcast for every recorded device.
type StateChangedEvent struct {
	UserID string       `json:"user_id"`
	Device alice.Device `json:"device"`
}

// CallbackEvent is broadcast after every platform callback.
type CallbackEvent struct {
	UserID    string `json:"user_id"`
	Kind      string `json:"kind"`
	OK        bool   `json:"ok"`
	ErrorCode string `json:"error_code,omitempty"`
	Devices   int    `json:"devices,omitempty"`
}

// Owner scopes the events to the connections of one user.
func (e StateChangedEvent) Owner() string { return e.UserID }

func (e CallbackEvent) Owner() string { return e.UserID }

// buffer is the pending notification of one user.
type buffer struct {
	user       catalog.User
	devices    map[string]bufferedDevice
	order      []string
	structural bool
	seq        uint64
	timer      schedule.Timer
	armed      uint64 // generation of timer, 0 when none is armed
}

type bufferedDevice struct {
	payload alice.Device
	seq     uint64
}

// Aggregator coalesces device updates per user and notifies the platform.
//
// Thread Safety: all methods are safe for concurrent use. Each user has at
// most one armed debounce timer; Record re-arms it.
type Aggregator struct {
	platform  Platform
	snapshots *SnapshotLog
	anonymous *AnonymousRegistry
	scheduler schedule.Scheduler
	window    time.Duration

	mu         sync.Mutex
	buffers    map[string]*buffer
	due        map[string]bool
	generation uint64

	recorder    Recorder
	broadcaster Broadcaster
	logger      Logger
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithScheduler replaces the real timer source.
func WithScheduler(s schedule.Scheduler) AggregatorOption {
	return func(a *Aggregator) { a.scheduler = s }
}

// WithWindow sets the debounce window.
func WithWindow(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.window = d
		}
	}
}

// WithRecorder stores every delivered state.
func WithRecorder(r Recorder) AggregatorOption {
	return func(a *Aggregator) { a.recorder = r }
}

// WithBroadcaster publishes state changes and callback outcomes.
func WithBroadcaster(b Broadcaster) AggregatorOption {
	return func(a *Aggregator) { a.broadcaster = b }
}

// WithLogger sets the logger.
func WithLogger(l Logger) AggregatorOption {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAggregator creates an aggregator.
//
// Parameters:
//   - platform: Receives state and discovery callbacks
//   - snapshots: Log of the last delivered device list per user
//   - anonymous: Registry marked on UNKNOWN_USER answers (may be nil)
//   - opts: Scheduler, window, recorder, broadcaster and logger overrides
//
// Returns:
//   - *Aggregator: Aggregator with no armed timers
func NewAggregator(platform Platform, snapshots *SnapshotLog, anonymous *AnonymousRegistry, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		platform:  platform,
		snapshots: snapshots,
		anonymous: anonymous,
		scheduler: schedule.Real{},
		window:    defaultWindow,
		buffers:   make(map[string]*buffer),
		due:       make(map[string]bool),
		logger:    noopLogger{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Record buffers the reconciled device and re-arms the user's debounce timer.
func (a *Aggregator) Record(ctx context.Context, user catalog.User, device alice.Device) {
	structural := a.structuralChange(ctx, user, device)
	userID := user.ID.String()

	a.mu.Lock()
	b, ok := a.buffers[userID]
	if !ok {
		b = &buffer{user: user, devices: make(map[string]bufferedDevice)}
		a.buffers[userID] = b
	}
	b.seq++
	if _, seen := b.devices[device.ID]; !seen {
		b.order = append(b.order, device.ID)
	}
	b.devices[device.ID] = bufferedDevice{payload: device.Payload(), seq: b.seq}
	b.structural = b.structural || structural

	if b.timer != nil {
		b.timer.Stop()
	}
	a.generation++
	gen := a.generation
	b.armed = gen
	b.timer = a.scheduler.AfterFunc(a.window, func() { a.flush(userID, gen) })
	a.mu.Unlock()

	a.broadcast(ChannelStateChanged, StateChangedEvent{UserID: userID, Device: device.Payload()})
}

func (a *Aggregator) structuralChange(ctx context.Context, user catalog.User, device alice.Device) bool {
	snap, found, err := a.snapshots.Latest(ctx, user.Email)
	if err != nil {
		a.logger.Warn("reading delivered snapshot failed", "user", user.ID, "error", err)
		return false
	}
	return StructuralChange(snap, found, device)
}

// flush runs when the user's debounce window closes. A callback whose
// timer was re-armed or stopped after it became due does nothing.
func (a *Aggregator) flush(userID string, gen uint64) {
	a.mu.Lock()
	b, ok := a.buffers[userID]
	if !ok || b.armed != gen || len(b.devices) == 0 {
		a.mu.Unlock()
		return
	}
	b.timer = nil
	b.armed = 0
	user := b.user
	structural := b.structural
	a.mu.Unlock()

	ctx := context.Background()

	if structural {
		resp, err := a.platform.Discovery(ctx, userID)
		a.afterCallback(user, KindDiscovery, resp, err, 0)
		if err != nil {
			a.logger.Error("discovery callback failed", "user", userID, "error", err)
			return
		}
		// The state follows once the platform has re-read the device list.
		a.mu.Lock()
		a.due[userID] = true
		a.mu.Unlock()
		a.logger.Info("discovery callback sent, state notification due", "user", userID)
		return
	}

	a.mu.Lock()
	a.due[userID] = true
	devices, seq := b.snapshot()
	a.mu.Unlock()

	if _, err := a.sendState(ctx, user, devices, seq); err != nil {
		a.logger.Error("state callback failed", "user", userID, "error", err)
	}
}

// snapshot must be called with the aggregator lock held.
func (b *buffer) snapshot() ([]alice.Device, uint64) {
	out := make([]alice.Device, 0, len(b.order))
	for _, id := range b.order {
		if d, ok := b.devices[id]; ok {
			out = append(out, d.payload)
		}
	}
	return out, b.seq
}

// FlushDue sends devices as the user's state notification if one was marked
// due by an earlier flush. It reports whether a notification was sent and
// accepted.
func (a *Aggregator) FlushDue(ctx context.Context, user catalog.User, devices []alice.Device) (bool, error) {
	userID := user.ID.String()

	a.mu.Lock()
	due := a.due[userID]
	var seq uint64
	if b, ok := a.buffers[userID]; ok {
		seq = b.seq
	}
	a.mu.Unlock()

	if !due {
		return false, nil
	}
	return a.sendState(ctx, user, devices, seq)
}

// sendState delivers a state notification. On success the due mark is
// cleared, buffered devices not updated after seq are dropped and the
// snapshot log is updated.
func (a *Aggregator) sendState(ctx context.Context, user catalog.User, devices []alice.Device, seq uint64) (bool, error) {
	userID := user.ID.String()

	resp, err := a.platform.State(ctx, userID, devices)
	a.afterCallback(user, KindState, resp, err, len(devices))
	if err != nil {
		return false, err
	}

	a.mu.Lock()
	delete(a.due, userID)
	if b, ok := a.buffers[userID]; ok {
		b.clearUpTo(seq)
		if len(b.devices) == 0 && b.timer == nil {
			delete(a.buffers, userID)
		}
	}
	a.mu.Unlock()

	payload := make([]alice.Device, len(devices))
	for i, d := range devices {
		payload[i] = d.Payload()
	}
	if err := a.snapshots.Record(ctx, user.Email, payload); err != nil {
		a.logger.Warn("recording delivered snapshot failed", "user", userID, "error", err)
	}
	if a.recorder != nil {
		a.recorder.WriteDeviceStates(userID, payload)
	}
	a.logger.Debug("state callback delivered", "user", userID, "devices", len(devices))
	return true, nil
}

// clearUpTo drops devices recorded at or before seq. Devices recorded
// during the callback stay buffered for the next window.
func (b *buffer) clearUpTo(seq uint64) {
	kept := b.order[:0]
	for _, id := range b.order {
		if b.devices[id].seq <= seq {
			delete(b.devices, id)
			continue
		}
		kept = append(kept, id)
	}
	b.order = kept
	b.structural = false
}

func (a *Aggregator) afterCallback(user catalog.User, kind string, resp *Response, err error, devices int) {
	if resp.UnknownUser() && a.anonymous != nil {
		a.anonymous.Mark(user.Email)
		a.logger.Warn("platform does not know user, ignoring its topics", "user", user.ID)
	}

	ev := CallbackEvent{UserID: user.ID.String(), Kind: kind, OK: err == nil, Devices: devices}
	if resp != nil {
		ev.ErrorCode = resp.ErrorCode
	}
	if errors.Is(err, ErrNotConfigured) {
		ev.ErrorCode = "NOT_CONFIGURED"
	}
	a.broadcast(ChannelSkillCallback, ev)
}

func (a *Aggregator) broadcast(channel string, payload any) {
	if a.broadcaster != nil {
		a.broadcaster.Broadcast(channel, payload)
	}
}

// Due reports whether a state notification is waiting for FlushDue.
func (a *Aggregator) Due(userID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.due[userID]
}

// Pending reports how many devices are buffered for the user.
func (a *Aggregator) Pending(userID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if b, ok := a.buffers[userID]; ok {
		return len(b.devices)
	}
	return 0
}

// Stop cancels every armed debounce timer. Buffered devices are kept.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, b := range a.buffers {
		if b.timer != nil {
			b.timer.Stop()
			b.timer = nil
		}
		b.armed = 0
	}
}
