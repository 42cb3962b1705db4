package topiccache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/alice-bridge/internal/infrastructure/kvstore"
	"github.com/nerrad567/alice-bridge/internal/schedule"
	"github.com/nerrad567/alice-bridge/internal/topic"
)

// Hash is the store hash holding topic messages.
const Hash = "topics"

// disappearFactor scales a topic lifetime into its silence window.
const disappearFactor = 1.5

// Classifier decides which template slot a concrete topic belongs to.
// *topic.Resolver satisfies it.
type Classifier interface {
	Classify(concrete string, typ topic.Type) bool
}

// Lifetimes are the per-topic-type expiries. Zero disables expiry for the type.
type Lifetimes struct {
	Available time.Duration
	Command   time.Duration
	State     time.Duration
}

// DisappearFunc is called when a topic stays silent past its window.
type DisappearFunc func(topic, lastMessage string)

// Logger is the logging interface used by the cache.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Change describes the effect of a Set.
type Change struct {
	Topic   string
	Message string

	// Previous is the message cached before the Set, if HadPrevious.
	Previous    string
	HadPrevious bool
}

// Changed reports whether the message differs from the cached one.
// A first message on a topic is a change.
func (c Change) Changed() bool {
	return !c.HadPrevious || c.Previous != c.Message
}

// Cache fronts a kvstore.Store with topic-aware expiry.
type Cache struct {
	store      kvstore.Store
	classifier Classifier
	lifetimes  Lifetimes
	scheduler  schedule.Scheduler

	mu          sync.Mutex
	timers      map[string]*silenceTimer
	onDisappear DisappearFunc
	logger      Logger
}

type silenceTimer struct {
	timer   schedule.Timer
	message string
}

// New creates a cache. scheduler may be nil to use real timers.
func New(store kvstore.Store, classifier Classifier, lifetimes Lifetimes, scheduler schedule.Scheduler) *Cache {
	if scheduler == nil {
		scheduler = schedule.Real{}
	}
	return &Cache{
		store:      store,
		classifier: classifier,
		lifetimes:  lifetimes,
		scheduler:  scheduler,
		timers:     make(map[string]*silenceTimer),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger.
func (c *Cache) SetLogger(l Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l == nil {
		l = noopLogger{}
	}
	c.logger = l
}

// OnDisappear registers the disappearance callback. It runs on the timer
// goroutine and must not block for long.
func (c *Cache) OnDisappear(f DisappearFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisappear = f
}

// Get returns the cached message of a topic.
func (c *Cache) Get(ctx context.Context, topicName string) (string, bool, error) {
	return c.store.HGet(ctx, Hash, topicName)
}

// Set stores a message, applies the topic's lifetime and re-arms its
// disappearance timer.
func (c *Cache) Set(ctx context.Context, topicName, message string) (Change, error) {
	change := Change{Topic: topicName, Message: message}

	prev, ok, err := c.store.HGet(ctx, Hash, topicName)
	if err != nil {
		return change, fmt.Errorf("reading topic %s: %w", topicName, err)
	}
	change.Previous, change.HadPrevious = prev, ok

	if err := c.store.HSet(ctx, Hash, topicName, message); err != nil {
		return change, fmt.Errorf("caching topic %s: %w", topicName, err)
	}

	lifetime := c.lifetimeOf(topicName)
	if lifetime > 0 {
		if err := c.store.HExpire(ctx, Hash, topicName, lifetime); err != nil {
			return change, fmt.Errorf("expiring topic %s: %w", topicName, err)
		}
	}

	if c.lifetimes.Command > 0 && lifetime > 0 {
		c.arm(topicName, message, time.Duration(float64(lifetime)*disappearFactor))
	}
	return change, nil
}

// lifetimeOf returns the lifetime of the first configured type the topic matches.
func (c *Cache) lifetimeOf(topicName string) time.Duration {
	policies := []struct {
		typ      topic.Type
		lifetime time.Duration
	}{
		{topic.TypeAvailable, c.lifetimes.Available},
		{topic.TypeCommand, c.lifetimes.Command},
		{topic.TypeState, c.lifetimes.State},
	}
	for _, p := range policies {
		if p.lifetime <= 0 {
			continue
		}
		if c.classifier.Classify(topicName, p.typ) {
			return p.lifetime
		}
	}
	return 0
}

func (c *Cache) arm(topicName, message string, window time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.timers[topicName]; ok {
		prev.timer.Stop()
	}
	st := &silenceTimer{message: message}
	st.timer = c.scheduler.AfterFunc(window, func() { c.fire(topicName, st) })
	c.timers[topicName] = st
}

func (c *Cache) fire(topicName string, st *silenceTimer) {
	c.mu.Lock()
	if c.timers[topicName] != st {
		// Re-armed after this timer was due.
		c.mu.Unlock()
		return
	}
	delete(c.timers, topicName)
	cb := c.onDisappear
	logger := c.logger
	c.mu.Unlock()

	logger.Debug("topic disappeared", "topic", topicName)
	if cb != nil {
		cb(topicName, st.message)
	}
}

// Pending reports how many disappearance timers are armed.
func (c *Cache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Stop cancels every disappearance timer.
func (c *Cache) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, st := range c.timers {
		st.timer.Stop()
		delete(c.timers, name)
	}
}

// StateValue reads the first of keys present in the JSON object cached on a
// state topic. Non-state topics, missing messages and non-JSON payloads
// read as absent.
func (c *Cache) StateValue(ctx context.Context, topicName string, keys []string) (string, bool, error) {
	if topicName == "" || len(keys) == 0 || !c.classifier.Classify(topicName, topic.TypeState) {
		return "", false, nil
	}
	msg, ok, err := c.Get(ctx, topicName)
	if err != nil || !ok {
		return "", false, err
	}

	data, ok := decodeObject(msg)
	if !ok {
		c.logger.Debug("state topic is not a JSON object", "topic", topicName)
		return "", false, nil
	}
	for _, k := range keys {
		if v, ok := data[k]; ok {
			return stringify(v), true, nil
		}
	}
	return "", false, nil
}

// StateChanged reports whether any of keys differs between two state topic
// payloads. A missing previous payload counts as an empty object. Payloads
// that are not JSON objects never count as changed.
func StateChanged(previous string, hadPrevious bool, current string, keys []string) bool {
	prev := map[string]any{}
	if hadPrevious && previous != "" {
		var ok bool
		if prev, ok = decodeObject(previous); !ok {
			return false
		}
	}
	cur, ok := decodeObject(current)
	if !ok {
		return false
	}
	for _, k := range keys {
		pv, pok := prev[k]
		cv, cok := cur[k]
		if pok != cok || (pok && stringify(pv) != stringify(cv)) {
			return true
		}
	}
	return false
}

func decodeObject(msg string) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader([]byte(msg)))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil || data == nil {
		return nil, false
	}
	return data, true
}

// stringify renders a decoded JSON value as the plain text a device would
// publish on its own command topic.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case nil:
		return "null"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
