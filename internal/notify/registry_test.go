package notify

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/alice-bridge/internal/alice"
	"github.com/nerrad567/alice-bridge/internal/infrastructure/kvstore"
	"github.com/nerrad567/alice-bridge/internal/topic"
	"github.com/nerrad567/alice-bridge/internal/topiccache"
)

func TestAnonymousRegistry(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r := NewAnonymousRegistry(5 * time.Minute)
	r.now = func() time.Time { return now }

	if r.IsAnonymous("ghost@example.com") {
		t.Error("unmarked name reported anonymous")
	}
	r.Mark("ghost@example.com")
	if !r.IsAnonymous("ghost@example.com") {
		t.Error("marked name not anonymous")
	}

	now = now.Add(5 * time.Minute)
	if r.IsAnonymous("ghost@example.com") {
		t.Error("mark should lapse after the TTL")
	}
}

func TestAnonymousRegistry_MarkSweepsLapsedNames(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r := NewAnonymousRegistry(time.Minute)
	r.now = func() time.Time { return now }

	r.Mark("a@example.com")
	r.Mark("b@example.com")
	now = now.Add(2 * time.Minute)
	r.Mark("c@example.com")

	if len(r.until) != 1 {
		t.Errorf("registry holds %d names, want only the fresh mark", len(r.until))
	}
	if !r.IsAnonymous("c@example.com") {
		t.Error("fresh mark lost")
	}
}

func TestSnapshotLog(t *testing.T) {
	ctx := context.Background()
	l := NewSnapshotLog(kvstore.NewMemory())
	l.now = func() time.Time { return time.Unix(100, 0) }

	if _, ok, err := l.Latest(ctx, "u@example.com"); ok || err != nil {
		t.Fatalf("Latest() on empty log = %v, %v", ok, err)
	}
	if err := l.Record(ctx, "u@example.com", []alice.Device{{ID: "lamp1"}}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	s, ok, err := l.Latest(ctx, "u@example.com")
	if err != nil || !ok || s.UpdatedAt != 100 || len(s.Devices) != 1 {
		t.Errorf("Latest() = %+v, %v, %v", s, ok, err)
	}
}

func TestStructuralChange(t *testing.T) {
	oneCap := alice.Device{ID: "d", Capabilities: []alice.Capability{{Type: alice.CapabilityOnOff}}}
	twoCaps := alice.Device{ID: "d", Capabilities: []alice.Capability{{Type: alice.CapabilityOnOff}, {Type: alice.CapabilityRange}}}
	withProp := alice.Device{ID: "d", Capabilities: oneCap.Capabilities, Properties: []alice.Property{{Type: alice.PropertyFloat}}}
	snap := Snapshot{Devices: []alice.Device{oneCap}}

	tests := []struct {
		name   string
		snap   Snapshot
		found  bool
		device alice.Device
		want   bool
	}{
		{"no snapshot", Snapshot{}, false, oneCap, true},
		{"same shape", snap, true, oneCap, false},
		{"capability added", snap, true, twoCaps, true},
		{"property added", snap, true, withProp, true},
		{"device not in snapshot", snap, true, alice.Device{ID: "other"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StructuralChange(tt.snap, tt.found, tt.device); got != tt.want {
				t.Errorf("StructuralChange() = %v, want %v", got, tt.want)
			}
		})
	}
}

type denyAll struct{}

func (denyAll) Relevant(topic.Match, topiccache.Change, bool) bool { return false }

func TestRelevance(t *testing.T) {
	command := topic.Match{Type: topic.TypeCommand}
	state := topic.Match{Type: topic.TypeState}
	keys := []string{"temp"}

	tests := []struct {
		name   string
		r      Relevance
		match  topic.Match
		change topiccache.Change
		want   bool
	}{
		{"command changed", Relevance{}, command, topiccache.Change{Previous: "on", HadPrevious: true, Message: "off"}, true},
		{"command unchanged", Relevance{}, command, topiccache.Change{Previous: "on", HadPrevious: true, Message: "on"}, false},
		{"command first message", Relevance{}, command, topiccache.Change{Message: "on"}, true},
		{"state key changed", Relevance{StateKeys: true}, state, topiccache.Change{Previous: `{"temp":1}`, HadPrevious: true, Message: `{"temp":2}`}, true},
		{"state other field", Relevance{StateKeys: true}, state, topiccache.Change{Previous: `{"temp":1,"x":1}`, HadPrevious: true, Message: `{"temp":1,"x":2}`}, false},
		{"state keys disabled", Relevance{}, state, topiccache.Change{Previous: `{"temp":1}`, HadPrevious: true, Message: `{"temp":2}`}, false},
		{"config topic", Relevance{StateKeys: true}, topic.Match{Type: topic.TypeConfig}, topiccache.Change{Message: "x"}, false},
		{"hook overrides", Relevance{Hook: denyAll{}}, command, topiccache.Change{Message: "on"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.IsRelevant(tt.match, tt.change, keys); got != tt.want {
				t.Errorf("IsRelevant() = %v, want %v", got, tt.want)
			}
		})
	}
}
