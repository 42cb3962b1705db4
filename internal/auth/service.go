package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/alice-bridge/internal/catalog"
)

// Client is the OAuth application the platform links accounts through.
type Client struct {
	AppID        string
	ClientID     string
	ClientSecret string
}

// Params are the OAuth parameters of an authorization request.
type Params struct {
	State        string
	RedirectURI  string
	ResponseType string
	ClientID     string
	Scope        string
}

// ParamsFrom reads the authorization parameters from a query or form.
func ParamsFrom(v url.Values) Params {
	return Params{
		State:        v.Get("state"),
		RedirectURI:  v.Get("redirect_uri"),
		ResponseType: v.Get("response_type"),
		ClientID:     v.Get("client_id"),
		Scope:        v.Get("scope"),
	}
}

// Values encodes p back into query parameters.
func (p Params) Values() url.Values {
	return url.Values{
		"state":         {p.State},
		"redirect_uri":  {p.RedirectURI},
		"response_type": {p.ResponseType},
		"client_id":     {p.ClientID},
		"scope":         {p.Scope},
	}
}

// Users looks up configured users. *catalog.Catalog satisfies it.
type Users interface {
	UserByID(id string) (catalog.User, error)
	UserByEmail(email string) (catalog.User, error)
}

// Config holds the signing secret, lifetimes and the single configured
// OAuth application.
type Config struct {
	Secret    string
	CodeTTL   time.Duration
	TokenTTL  time.Duration
	DialogURI string
	Client    Client
}

// Token is the response of the token endpoint.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Service implements account linking.
type Service struct {
	cfg   Config
	users Users
}

// NewService creates the account linking service.
func NewService(cfg Config, users Users) *Service {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = DefaultCodeTTL
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	return &Service{cfg: cfg, users: users}
}

// ClientByAppID returns the client with the given application id.
func (s *Service) ClientByAppID(appID string) (Client, error) {
	if appID == "" || appID != s.cfg.Client.AppID {
		return Client{}, fmt.Errorf("%w: app id %q", ErrClientNotFound, appID)
	}
	return s.cfg.Client, nil
}

// ClientByClientID returns the client with the given OAuth client id.
func (s *Service) ClientByClientID(clientID string) (Client, error) {
	if clientID == "" || clientID != s.cfg.Client.ClientID {
		return Client{}, fmt.Errorf("%w: client id %q", ErrClientNotFound, clientID)
	}
	return s.cfg.Client, nil
}

// ValidateRequest checks the required parameters, the redirect target and
// the client of an authorization request. Scope is optional.
func (s *Service) ValidateRequest(p Params) (Client, error) {
	required := []struct{ name, value string }{
		{"state", p.State},
		{"redirect_uri", p.RedirectURI},
		{"response_type", p.ResponseType},
		{"client_id", p.ClientID},
	}
	var missing []string
	for _, f := range required {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return Client{}, fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	if !strings.HasPrefix(p.RedirectURI, s.cfg.DialogURI) {
		return Client{}, fmt.Errorf("%w: unexpected redirect_uri", ErrInvalidRequest)
	}
	return s.ClientByClientID(p.ClientID)
}

// Authenticate returns the public form of the user with the given
// credentials.
func (s *Service) Authenticate(email, password string) (catalog.User, error) {
	if email == "" || password == "" {
		return catalog.User{}, ErrInvalidCredentials
	}
	u, err := s.users.UserByEmail(email)
	if err != nil {
		return catalog.User{}, ErrInvalidCredentials
	}
	if !CheckPassword(password, u.Password) {
		return catalog.User{}, ErrInvalidCredentials
	}
	return u.Public(), nil
}

// IssueCode returns an authorization code for the client and user.
func (s *Service) IssueCode(c Client, u catalog.User) (string, error) {
	return GenerateToken(c.AppID, u.ID.String(), s.cfg.Secret, s.cfg.CodeTTL)
}

// RedirectURL builds the redirect back to the platform carrying the code.
func (s *Service) RedirectURL(p Params, code string) string {
	q := url.Values{
		"code":      {code},
		"state":     {p.State},
		"client_id": {p.ClientID},
		"scope":     {p.Scope},
	}
	sep := "?"
	if strings.Contains(p.RedirectURI, "?") {
		sep = "&"
	}
	return p.RedirectURI + sep + q.Encode()
}

// Exchange trades an authorization code for an access token.
func (s *Service) Exchange(code string) (Token, error) {
	if code == "" {
		return Token{}, ErrTokenMissing
	}
	client, user, err := s.Resolve(code)
	if err != nil {
		return Token{}, err
	}

	access, err := GenerateToken(client.AppID, user.ID.String(), s.cfg.Secret, s.cfg.TokenTTL)
	if err != nil {
		return Token{}, err
	}
	return Token{
		AccessToken: access,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.cfg.TokenTTL / time.Second),
	}, nil
}

// Resolve validates a code or access token and returns its client and
// user.
func (s *Service) Resolve(token string) (Client, catalog.User, error) {
	if token == "" {
		return Client{}, catalog.User{}, ErrTokenMissing
	}
	claims, err := ParseToken(token, s.cfg.Secret)
	if err != nil {
		return Client{}, catalog.User{}, err
	}

	client, err := s.ClientByAppID(claims.AppID)
	if err != nil {
		return Client{}, catalog.User{}, err
	}
	user, err := s.users.UserByID(claims.UserID)
	if err != nil {
		if errors.Is(err, catalog.ErrUserNotFound) {
			return Client{}, catalog.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, claims.UserID)
		}
		return Client{}, catalog.User{}, err
	}
	return client, user, nil
}
