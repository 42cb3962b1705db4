package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/alice-bridge/internal/alice"
)

const (
	defaultCallbackTimeout = 3 * time.Second
	maxResponseBytes       = 1 << 20
)

// Callback kinds, also used as the last path segment of the callback URL.
const (
	KindState     = "state"
	KindDiscovery = "discovery"
)

// Response is the platform's answer to a callback.
type Response struct {
	RequestID    string `json:"request_id,omitempty"`
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// OK reports whether the platform accepted the callback.
func (r *Response) OK() bool {
	return r != nil && r.Status == "ok"
}

// UnknownUser reports whether the platform does not know the user.
func (r *Response) UnknownUser() bool {
	return r != nil && r.Status == "error" && r.ErrorCode == alice.ErrorUnknownUser
}

type callbackBody struct {
	TS      int64           `json:"ts"`
	Payload callbackPayload `json:"payload"`
}

type callbackPayload struct {
	UserID  string         `json:"user_id"`
	Devices []alice.Device `json:"devices,omitempty"`
}

// SkillClient posts state and discovery callbacks to the platform.
//
// Calls are not retried. Thread Safety: safe for concurrent use.
type SkillClient struct {
	baseURL    string
	skillID    string
	token      string
	httpClient *http.Client
	now        func() time.Time
}

// NewSkillClient creates a client. A zero timeout uses three seconds.
func NewSkillClient(baseURL, skillID, token string, timeout time.Duration) *SkillClient {
	if timeout <= 0 {
		timeout = defaultCallbackTimeout
	}
	return &SkillClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		skillID:    strings.TrimSpace(skillID),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Configured reports whether the skill id and token are set.
func (c *SkillClient) Configured() bool {
	return c.skillID != "" && c.token != ""
}

// State sends the minimal payload of devices for the user.
func (c *SkillClient) State(ctx context.Context, userID string, devices []alice.Device) (*Response, error) {
	payload := make([]alice.Device, len(devices))
	for i, d := range devices {
		payload[i] = d.Payload()
	}
	return c.post(ctx, KindState, callbackPayload{UserID: userID, Devices: payload})
}

// Discovery asks the platform to re-read the user's device list.
func (c *SkillClient) Discovery(ctx context.Context, userID string) (*Response, error) {
	return c.post(ctx, KindDiscovery, callbackPayload{UserID: userID})
}

func (c *SkillClient) post(ctx context.Context, kind string, payload callbackPayload) (*Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(callbackBody{TS: c.now().Unix(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encoding %s callback: %w", kind, err)
	}

	url := fmt.Sprintf("%s/%s/callback/%s", c.baseURL, c.skillID, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s callback: %w", kind, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s callback: %w", kind, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s callback: reading response: %w", kind, err)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil || out.Status == "" {
		return nil, fmt.Errorf("%w: %s callback: status %d", ErrBadResponse, kind, resp.StatusCode)
	}
	if !out.OK() {
		return &out, fmt.Errorf("%w: %s callback: %s %s", ErrCallbackRejected, kind, out.ErrorCode, out.ErrorMessage)
	}
	return &out, nil
}
