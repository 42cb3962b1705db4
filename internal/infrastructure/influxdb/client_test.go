package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/alice-bridge/internal/alice"
	"github.com/nerrad567/alice-bridge/internal/infrastructure/config"
	"github.com/nerrad567/alice-bridge/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records line protocol posted to /api/v2/write.
type fakeInflux struct {
	mu       sync.Mutex
	lines    []string
	query    string
	writeErr bool
	down     bool
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/ping":
		if f.down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		if f.writeErr {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"code":"invalid","message":"bad line"}`) //nolint:errcheck // test server
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.query = r.URL.RawQuery
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if line != "" {
				f.lines = append(f.lines, line)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// written waits briefly for the batch to arrive and returns the lines.
func (f *fakeInflux) written(want int) []string {
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		lines := append([]string(nil), f.lines...)
		f.mu.Unlock()
		if len(lines) >= want || time.Now().After(deadline) {
			return lines
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func startInflux(t *testing.T) (*fakeInflux, config.InfluxDBConfig) {
	t.Helper()
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, config.InfluxDBConfig{
		Enabled:       true,
		URL:           srv.URL,
		Token:         "test-token",
		Org:           "alicebridge",
		Bucket:        "states",
		BatchSize:     100,
		FlushInterval: 60,
	}
}

// ─── Connect ───────────────────────────────────────────────────────

func TestConnect(t *testing.T) {
	_, cfg := startInflux(t)

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, cfg := startInflux(t)
	cfg.Enabled = false

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	fake, cfg := startInflux(t)
	fake.down = true

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	_, cfg := startInflux(t)
	cfg.BatchSize = 0
	cfg.FlushInterval = -1

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()
}

// ─── Writes ────────────────────────────────────────────────────────

func TestWriteDeviceStates(t *testing.T) {
	fake, cfg := startInflux(t)

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.WriteDeviceStates("7", []alice.Device{
		{
			ID: "lamp1",
			Capabilities: []alice.Capability{
				{Type: alice.CapabilityOnOff, State: &alice.State{Instance: "on", Value: true}},
				{Type: alice.CapabilityMode, State: &alice.State{Instance: "fan_speed", Value: "auto"}},
			},
			Properties: []alice.Property{
				{Type: alice.PropertyFloat, State: &alice.State{Instance: "temperature", Value: 21.5}},
			},
		},
		{ID: "gone", ErrorCode: alice.ErrorDeviceUnreachable},
	})
	client.Flush()

	lines := fake.written(2)
	if len(lines) != 2 {
		t.Fatalf("written lines = %v, want 2", lines)
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, influxdb.DeviceStateMeasurement+",") {
			t.Errorf("line %q has the wrong measurement", line)
		}
		if !strings.Contains(line, "device=lamp1") || !strings.Contains(line, "user=7") {
			t.Errorf("line %q missing tags", line)
		}
	}
	if !strings.Contains(lines[0], "instance=on") || !strings.Contains(lines[0], "value=1") {
		t.Errorf("on_off line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "value=21.5") {
		t.Errorf("temperature line = %q", lines[1])
	}
	if !strings.Contains(fake.query, "bucket=states") || !strings.Contains(fake.query, "org=alicebridge") {
		t.Errorf("write query = %q", fake.query)
	}
}

func TestWriteErrorsReachCallback(t *testing.T) {
	fake, cfg := startInflux(t)

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	errs := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errs <- err:
		default:
		}
	})

	fake.mu.Lock()
	fake.writeErr = true
	fake.mu.Unlock()

	client.WriteDeviceStates("7", []alice.Device{{
		ID:           "lamp1",
		Capabilities: []alice.Capability{{Type: alice.CapabilityOnOff, State: &alice.State{Instance: "on", Value: false}}},
	}})
	client.Flush()

	select {
	case err := <-errs:
		if !errors.Is(err, influxdb.ErrWriteFailed) {
			t.Errorf("callback error = %v, want ErrWriteFailed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("write error never reached the callback")
	}
}

// ─── Close ─────────────────────────────────────────────────────────

func TestClose(t *testing.T) {
	_, cfg := startInflux(t)

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v", err)
	}

	// No-ops after Close.
	client.Flush()
	client.WriteDeviceStates("7", []alice.Device{{ID: "lamp1"}})
}
