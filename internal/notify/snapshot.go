package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/alice-bridge/internal/alice"
	"github.com/nerrad567/alice-bridge/internal/infrastructure/kvstore"
)

// SnapshotHash is the store hash of delivered snapshots, keyed by user e-mail.
const SnapshotHash = "log_user_skill_updates"

// Snapshot is the last device payload the platform acknowledged for a user.
type Snapshot struct {
	Devices   []alice.Device `json:"devices"`
	UpdatedAt int64          `json:"updatedAt"`
}

// SnapshotLog persists delivered snapshots in a kvstore.Store.
type SnapshotLog struct {
	store kvstore.Store
	now   func() time.Time
}

// NewSnapshotLog creates a log over store.
func NewSnapshotLog(store kvstore.Store) *SnapshotLog {
	return &SnapshotLog{store: store, now: time.Now}
}

// Latest returns the last delivered snapshot for the user.
func (l *SnapshotLog) Latest(ctx context.Context, email string) (Snapshot, bool, error) {
	raw, ok, err := l.store.HGet(ctx, SnapshotHash, email)
	if err != nil || !ok {
		return Snapshot{}, false, err
	}
	var s Snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Snapshot{}, false, fmt.Errorf("decoding snapshot of %s: %w", email, err)
	}
	return s, true, nil
}

// Record stores devices as the user's delivered snapshot.
func (l *SnapshotLog) Record(ctx context.Context, email string, devices []alice.Device) error {
	raw, err := json.Marshal(Snapshot{Devices: devices, UpdatedAt: l.now().Unix()})
	if err != nil {
		return fmt.Errorf("encoding snapshot of %s: %w", email, err)
	}
	return l.store.HSet(ctx, SnapshotHash, email, string(raw))
}

// StructuralChange reports whether device differs in shape from its entry
// in the snapshot. Without a snapshot every device counts as changed; a
// device missing from an existing snapshot does not.
func StructuralChange(s Snapshot, found bool, device alice.Device) bool {
	if !found {
		return true
	}
	for _, prev := range s.Devices {
		if prev.ID != device.ID {
			continue
		}
		if len(prev.Capabilities) != len(device.Capabilities) || len(prev.Properties) != len(device.Properties) {
			return true
		}
	}
	return false
}
