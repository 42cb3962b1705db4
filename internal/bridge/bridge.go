package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/alice-bridge/internal/alice"
	"github.com/nerrad567/alice-bridge/internal/catalog"
	"github.com/nerrad567/alice-bridge/internal/convert"
	"github.com/nerrad567/alice-bridge/internal/notify"
	"github.com/nerrad567/alice-bridge/internal/reconcile"
	"github.com/nerrad567/alice-bridge/internal/schedule"
	"github.com/nerrad567/alice-bridge/internal/topic"
	"github.com/nerrad567/alice-bridge/internal/topiccache"
)

const defaultFollowUpDelay = time.Second

// Publisher sends a message on an MQTT topic. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger is the logging interface used by the bridge.
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

// Deps are the collaborators of a Bridge.
type Deps struct {
	Catalog    *catalog.Catalog
	Resolver   *topic.Resolver
	Cache      *topiccache.Cache
	Reconciler *reconcile.Reconciler
	Converter  *convert.Converter
	Aggregator *notify.Aggregator
	Anonymous  *notify.AnonymousRegistry
	Relevance  notify.Relevance
	Publisher  Publisher

	// Notify enables the inbound notification pipeline. Without it
	// messages are only cached.
	Notify bool

	QoS           byte
	FollowUpDelay time.Duration
	Scheduler     schedule.Scheduler
	Logger        Logger
}

// Bridge is the control flow of the service.
type Bridge struct {
	catalog    *catalog.Catalog
	resolver   *topic.Resolver
	cache      *topiccache.Cache
	reconciler *reconcile.Reconciler
	converter  *convert.Converter
	aggregator *notify.Aggregator
	anonymous  *notify.AnonymousRegistry
	relevance  notify.Relevance
	publisher  Publisher

	notify    bool
	qos       byte
	followUp  time.Duration
	scheduler schedule.Scheduler
	logger    Logger
}

// New creates a Bridge and registers it for topic disappearance reports.
func New(d Deps) *Bridge {
	b := &Bridge{
		catalog:    d.Catalog,
		resolver:   d.Resolver,
		cache:      d.Cache,
		reconciler: d.Reconciler,
		converter:  d.Converter,
		aggregator: d.Aggregator,
		anonymous:  d.Anonymous,
		relevance:  d.Relevance,
		publisher:  d.Publisher,
		notify:     d.Notify,
		qos:        d.QoS,
		followUp:   d.FollowUpDelay,
		scheduler:  d.Scheduler,
		logger:     d.Logger,
	}
	if b.followUp <= 0 {
		b.followUp = defaultFollowUpDelay
	}
	if b.scheduler == nil {
		b.scheduler = schedule.Real{}
	}
	if b.logger == nil {
		b.logger = noopLogger{}
	}
	if b.anonymous == nil {
		b.anonymous = notify.NewAnonymousRegistry(5 * time.Minute)
	}
	if b.cache != nil {
		b.cache.OnDisappear(b.HandleDisappeared)
	}
	return b
}

// SubscribeTopic returns the wildcard topic to subscribe to.
func (b *Bridge) SubscribeTopic() string {
	return b.resolver.SubscribeTopic()
}

// HandleMessage is the MQTT message handler. Errors are returned for the
// transport to log; the bridge never panics on bad input.
func (b *Bridge) HandleMessage(topicName string, payload []byte) error {
	ctx := context.Background()

	change, err := b.cache.Set(ctx, topicName, string(payload))
	if err != nil {
		return err
	}
	if !b.notify || !change.Changed() {
		return nil
	}

	match, ok := b.resolver.Reverse(topicName, alice.Ref{})
	if !ok {
		return nil
	}
	if !b.relevance.IsRelevant(match, change, b.resolver.StateKeys(match.DeviceType)) {
		return nil
	}

	return b.notifyDevice(ctx, match)
}

// HandleDisappeared reconciles the device of a state topic that fell silent.
func (b *Bridge) HandleDisappeared(topicName, _ string) {
	if !b.notify {
		return
	}
	match, ok := b.resolver.Reverse(topicName, alice.Ref{})
	if !ok || match.Type != topic.TypeState {
		return
	}
	if err := b.notifyDevice(context.Background(), match); err != nil {
		b.logger.Warn("reconciling disappeared topic failed", "topic", topicName, "error", err)
	}
}

// notifyDevice reconciles the device named by match and records it with
// the aggregator. Unknown users are marked anonymous and skipped.
func (b *Bridge) notifyDevice(ctx context.Context, match topic.Match) error {
	if b.anonymous.IsAnonymous(match.UserName) {
		return nil
	}

	user, err := b.catalog.UserByNameOrEmail(match.UserName)
	if err != nil {
		if errors.Is(err, catalog.ErrUserNotFound) {
			b.anonymous.Mark(match.UserName)
			b.logger.Debug("ignoring topics of unknown user", "user", match.UserName)
			return nil
		}
		return err
	}

	device, ok := b.catalog.UserDevice(user, match.DeviceID)
	if !ok {
		return nil
	}

	reconciled, err := b.reconciler.Reconcile(ctx, user, device)
	if err != nil {
		return err
	}
	b.aggregator.Record(ctx, user, reconciled)
	return nil
}

// UserDevices returns the user's declared devices without state, as
// advertised by the device list endpoint.
func (b *Bridge) UserDevices(user catalog.User) []alice.Device {
	devices := b.catalog.UserDevices(user)
	for i := range devices {
		devices[i] = devices[i].WithoutState()
	}
	return devices
}

// ScheduleFollowUp sends the state notification marked due by an earlier
// discovery callback, once the platform has had time to read the device
// list.
func (b *Bridge) ScheduleFollowUp(user catalog.User) {
	if !b.notify || !b.aggregator.Due(user.ID.String()) {
		return
	}
	b.scheduler.AfterFunc(b.followUp, func() {
		ctx := context.Background()
		devices := b.reconcileAll(ctx, user)
		sent, err := b.aggregator.FlushDue(ctx, user, devices)
		if err != nil {
			b.logger.Error("follow-up state callback failed", "user", user.ID, "error", err)
			return
		}
		if sent {
			b.logger.Info("follow-up state callback delivered", "user", user.ID, "devices", len(devices))
		}
	})
}

func (b *Bridge) reconcileAll(ctx context.Context, user catalog.User) []alice.Device {
	declared := b.catalog.UserDevices(user)
	out := make([]alice.Device, 0, len(declared))
	for _, d := range declared {
		r, err := b.reconciler.Reconcile(ctx, user, d)
		if err != nil {
			b.logger.Warn("reconciling device failed", "user", user.ID, "device", d.ID, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out
}
