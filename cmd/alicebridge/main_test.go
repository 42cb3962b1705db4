package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/alice-bridge/internal/auth"
)

const testSecret = "test-secret-for-development-only-0123456789"

// writeConfig writes a minimal valid config pointing at the catalog testdata.
func writeConfig(t *testing.T, dir, mqttPort, catalogDir string) string {
	t.Helper()
	content := `
skill:
  dialog_uri: "https://social.yandex.net/"
  app_id: "app"
  client_id: "alice"
  client_secret: "s3cret"

catalog:
  devices_file: "` + filepath.Join(catalogDir, "devices.json") + `"
  users_file: "` + filepath.Join(catalogDir, "users.json") + `"
  mqtt_file: "` + filepath.Join(catalogDir, "mqtt.json") + `"

store:
  backend: sqlite

database:
  path: "` + filepath.Join(dir, "test.db") + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: ` + mqttPort + `
    client_id: "alicebridge-cmd-test"
  qos: 1
  reconnect:
    initial_delay: 1
    max_delay: 5

api:
  host: "127.0.0.1"
  port: 18080

logging:
  level: info
  format: text
  output: stdout

security:
  jwt:
    secret: "` + testSecret + `"
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("ALICEBRIDGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingCatalog verifies run fails before touching the network
// when the catalog documents are missing.
func TestRun_MissingCatalog(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ALICEBRIDGE_CONFIG", writeConfig(t, dir, "1883", filepath.Join(dir, "missing")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with missing catalog")
	}
	if !strings.Contains(err.Error(), "loading catalog") {
		t.Errorf("run() error = %v, want catalog error", err)
	}
}

// TestRun_BrokerUnavailable verifies startup fails when MQTT cannot be reached.
func TestRun_BrokerUnavailable(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ALICEBRIDGE_CONFIG", writeConfig(t, dir, "19999", "../../internal/catalog/testdata"))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without a broker")
	}
	if !strings.Contains(err.Error(), "MQTT") {
		t.Errorf("run() error = %v, want MQTT error", err)
	}
}

// TestRun_SuccessfulStartupAndShutdown tests full startup with running services.
// Requires MQTT broker at 127.0.0.1:1883.
func TestRun_SuccessfulStartupAndShutdown(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ALICEBRIDGE_CONFIG", writeConfig(t, dir, "1883", "../../internal/catalog/testdata"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Logf("run() returned error: %v (may be due to missing MQTT broker)", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("ALICEBRIDGE_CONFIG", "")
	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}

	expected := "/custom/path/config.yaml"
	t.Setenv("ALICEBRIDGE_CONFIG", expected)
	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestHealthCheck_AllDisabled(t *testing.T) {
	if err := healthCheck(context.Background(), nil, nil, nil); err != nil {
		t.Errorf("healthCheck() error = %v, want nil", err)
	}
}

func TestHashPassword(t *testing.T) {
	var out bytes.Buffer
	if err := hashPassword(&out, []string{"hunter2"}); err != nil {
		t.Fatalf("hashPassword() error = %v", err)
	}

	hash := strings.TrimSpace(out.String())
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hashPassword() = %q, want argon2id PHC string", hash)
	}
	if !auth.CheckPassword("hunter2", hash) {
		t.Error("CheckPassword() = false for the printed hash")
	}
}

func TestHashPassword_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {""}, {"a", "b"}} {
		if err := hashPassword(&bytes.Buffer{}, args); err == nil {
			t.Errorf("hashPassword(%q) should fail", args)
		}
	}
}
