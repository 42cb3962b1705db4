package influxdb

import (
	"encoding/json"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/alice-bridge/internal/alice"
)

// DeviceStateMeasurement is the measurement used for delivered device states.
const DeviceStateMeasurement = "alice_device_state"

// WriteDeviceStates records the states of devices that were delivered to
// the skill for one user.
//
// Only numeric and boolean state values are written; booleans are stored
// as 1 or 0 so the "value" field keeps a single type. Devices carrying an
// error code and states with other value types are skipped.
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteDeviceStates(userID string, devices []alice.Device) {
	if !c.IsConnected() {
		return
	}

	for _, p := range statePoints(userID, devices, time.Now()) {
		c.writeAPI.WritePoint(p)
	}
}

// statePoints converts device states into points, one per capability or
// property instance.
func statePoints(userID string, devices []alice.Device, ts time.Time) []*write.Point {
	var points []*write.Point
	add := func(d alice.Device, typ string, st *alice.State) {
		if st == nil {
			return
		}
		value, ok := numericValue(st.Value)
		if !ok {
			return
		}
		points = append(points, write.NewPoint(
			DeviceStateMeasurement,
			map[string]string{
				"user":     userID,
				"device":   d.ID,
				"type":     typ,
				"instance": st.Instance,
			},
			map[string]interface{}{
				"value": value,
			},
			ts,
		))
	}

	for _, d := range devices {
		if d.ErrorCode != "" {
			continue
		}
		for _, c := range d.Capabilities {
			add(d, c.Type, c.State)
		}
		for _, p := range d.Properties {
			add(d, p.Type, p.State)
		}
	}
	return points
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
