package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/alice-bridge/internal/alice"
)

type capturedRequest struct {
	path  string
	auth  string
	reqID string
	body  map[string]any
}

func newPlatformServer(t *testing.T, status int, response string) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()
	got := make(chan capturedRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		got <- capturedRequest{
			path:  r.URL.Path,
			auth:  r.Header.Get("Authorization"),
			reqID: r.Header.Get("X-Request-Id"),
			body:  body,
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestSkillClient_State(t *testing.T) {
	srv, got := newPlatformServer(t, http.StatusAccepted, `{"request_id":"r1","status":"ok"}`)
	c := NewSkillClient(srv.URL+"/", "skill-1", "tok", time.Second)
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	device := alice.Device{
		ID:   "lamp1",
		Name: "Lamp",
		Capabilities: []alice.Capability{{
			Type:       alice.CapabilityOnOff,
			Parameters: map[string]any{"split": true},
			State:      &alice.State{Instance: "on", Value: true},
		}},
	}
	resp, err := c.State(context.Background(), "7", []alice.Device{device})
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if !resp.OK() || resp.RequestID != "r1" {
		t.Errorf("State() response = %+v", resp)
	}

	req := <-got
	if req.path != "/skill-1/callback/state" {
		t.Errorf("path = %q", req.path)
	}
	if req.auth != "Bearer tok" {
		t.Errorf("Authorization = %q", req.auth)
	}
	if req.reqID == "" {
		t.Error("missing X-Request-Id")
	}
	if req.body["ts"] != float64(1700000000) {
		t.Errorf("ts = %v", req.body["ts"])
	}

	payload := req.body["payload"].(map[string]any)
	if payload["user_id"] != "7" {
		t.Errorf("user_id = %v", payload["user_id"])
	}
	sent := payload["devices"].([]any)[0].(map[string]any)
	if _, ok := sent["name"]; ok {
		t.Error("state payload should not carry device metadata")
	}
	capability := sent["capabilities"].([]any)[0].(map[string]any)
	if _, ok := capability["parameters"]; ok {
		t.Error("state payload should not carry capability parameters")
	}
}

func TestSkillClient_Discovery(t *testing.T) {
	srv, got := newPlatformServer(t, http.StatusOK, `{"status":"ok"}`)
	c := NewSkillClient(srv.URL, "skill-1", "tok", 0)

	if _, err := c.Discovery(context.Background(), "7"); err != nil {
		t.Fatalf("Discovery() error = %v", err)
	}
	req := <-got
	if req.path != "/skill-1/callback/discovery" {
		t.Errorf("path = %q", req.path)
	}
	payload := req.body["payload"].(map[string]any)
	if _, ok := payload["devices"]; ok {
		t.Error("discovery payload should not carry devices")
	}
}

func TestSkillClient_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		response    string
		wantErr     error
		unknownUser bool
	}{
		{"rejected", http.StatusBadRequest, `{"status":"error","error_code":"BAD_REQUEST"}`, ErrCallbackRejected, false},
		{"unknown user", http.StatusNotFound, `{"status":"error","error_code":"UNKNOWN_USER"}`, ErrCallbackRejected, true},
		{"not json", http.StatusBadGateway, `<html>`, ErrBadResponse, false},
		{"no status", http.StatusOK, `{}`, ErrBadResponse, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newPlatformServer(t, tt.status, tt.response)
			c := NewSkillClient(srv.URL, "s", "t", time.Second)

			resp, err := c.Discovery(context.Background(), "1")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Discovery() error = %v, want %v", err, tt.wantErr)
			}
			if resp.UnknownUser() != tt.unknownUser {
				t.Errorf("UnknownUser() = %v, want %v", resp.UnknownUser(), tt.unknownUser)
			}
		})
	}
}

func TestSkillClient_NotConfigured(t *testing.T) {
	for _, c := range []*SkillClient{
		NewSkillClient("http://unused", "", "tok", 0),
		NewSkillClient("http://unused", "skill", "  ", 0),
	} {
		if c.Configured() {
			t.Error("Configured() = true with a missing id or token")
		}
		if _, err := c.State(context.Background(), "1", nil); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("State() error = %v, want ErrNotConfigured", err)
		}
	}
}
