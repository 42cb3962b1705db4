package auth

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/alice-bridge/internal/alice"
	"github.com/nerrad567/alice-bridge/internal/catalog"
	"github.com/nerrad567/alice-bridge/internal/topic"
)

const dialogURI = "https://social.example.net/broker/authorize"

func testService(t *testing.T) *Service {
	t.Helper()
	hash, err := HashPassword("hashed-pass")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	users := []catalog.User{
		{ID: "1", Email: "plain@example.com", Password: "plain-pass", DeviceIDs: []string{"lamp1"}},
		{ID: "2", Email: "hashed@example.com", Password: hash},
	}
	cat := catalog.New([]alice.Device{{ID: "lamp1"}}, users, topic.Config{})
	return NewService(Config{
		Secret:    testSecret,
		DialogURI: dialogURI,
		Client:    Client{AppID: "7", ClientID: "alice", ClientSecret: "secret"},
	}, cat)
}

func validParams() Params {
	return Params{
		State:        "st-1",
		RedirectURI:  dialogURI + "?cb=1",
		ResponseType: "code",
		ClientID:     "alice",
		Scope:        "home:lights",
	}
}

func TestService_ValidateRequest(t *testing.T) {
	s := testService(t)

	tests := []struct {
		name    string
		mutate  func(p *Params)
		wantErr error
	}{
		{"valid", func(*Params) {}, nil},
		{"scope optional", func(p *Params) { p.Scope = "" }, nil},
		{"missing state", func(p *Params) { p.State = "" }, ErrInvalidRequest},
		{"missing response type", func(p *Params) { p.ResponseType = "" }, ErrInvalidRequest},
		{"foreign redirect", func(p *Params) { p.RedirectURI = "https://evil.example.com/" }, ErrInvalidRequest},
		{"unknown client", func(p *Params) { p.ClientID = "other" }, ErrClientNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			c, err := s.ValidateRequest(p)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ValidateRequest() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateRequest() error = %v", err)
			}
			if c.AppID != "7" {
				t.Errorf("client = %+v", c)
			}
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	s := testService(t)

	tests := []struct {
		name, email, password string
		wantID                string
	}{
		{"plain", "plain@example.com", "plain-pass", "1"},
		{"hashed", "hashed@example.com", "hashed-pass", "2"},
		{"wrong password", "plain@example.com", "nope", ""},
		{"unknown user", "ghost@example.com", "plain-pass", ""},
		{"empty", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := s.Authenticate(tt.email, tt.password)
			if tt.wantID == "" {
				if !errors.Is(err, ErrInvalidCredentials) {
					t.Errorf("Authenticate() error = %v, want ErrInvalidCredentials", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if u.ID.String() != tt.wantID {
				t.Errorf("ID = %q, want %q", u.ID, tt.wantID)
			}
			if u.Password != "" {
				t.Error("authenticated user must not carry the password")
			}
		})
	}
}

func TestService_CodeExchangeAndResolve(t *testing.T) {
	s := testService(t)
	p := validParams()

	client, err := s.ValidateRequest(p)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	user, err := s.Authenticate("plain@example.com", "plain-pass")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	code, err := s.IssueCode(client, user)
	if err != nil {
		t.Fatalf("IssueCode() error = %v", err)
	}

	redirect, err := url.Parse(s.RedirectURL(p, code))
	if err != nil {
		t.Fatalf("RedirectURL() not a URL: %v", err)
	}
	q := redirect.Query()
	if !strings.HasPrefix(redirect.String(), dialogURI) || q.Get("cb") != "1" {
		t.Errorf("redirect = %s, want the platform redirect_uri", redirect)
	}
	if q.Get("code") != code || q.Get("state") != "st-1" || q.Get("client_id") != "alice" || q.Get("scope") != "home:lights" {
		t.Errorf("redirect query = %v", q)
	}

	token, err := s.Exchange(code)
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if token.TokenType != "bearer" || token.ExpiresIn != int64(DefaultTokenTTL/time.Second) {
		t.Errorf("token = %+v", token)
	}

	gotClient, gotUser, err := s.Resolve(token.AccessToken)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if gotClient.ClientID != "alice" || gotUser.Email != "plain@example.com" {
		t.Errorf("Resolve() = %+v, %+v", gotClient, gotUser)
	}
}

func TestService_ResolveErrors(t *testing.T) {
	s := testService(t)

	unknownUser, _ := GenerateToken("7", "99", testSecret, time.Hour)
	unknownApp, _ := GenerateToken("8", "1", testSecret, time.Hour)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"missing", "", ErrTokenMissing},
		{"invalid", "garbage", ErrTokenInvalid},
		{"unknown user", unknownUser, ErrUserNotFound},
		{"unknown client", unknownApp, ErrClientNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.Resolve(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := s.Exchange(""); !errors.Is(err, ErrTokenMissing) {
		t.Errorf("Exchange(\"\") error = %v, want ErrTokenMissing", err)
	}
}
