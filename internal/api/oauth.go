package api

import (
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/nerrad567/alice-bridge/internal/auth"
)

//go:embed templates/login.html
var templatesFS embed.FS

var loginTemplate = template.Must(template.ParseFS(templatesFS, "templates/login.html"))

type loginPage struct {
	Params auth.Params
	Error  string
}

// handleLoginForm renders the login form of the authorization request.
func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	params := auth.ParamsFrom(r.URL.Query())
	if _, err := s.auth.ValidateRequest(params); err != nil {
		s.logger.Debug("rejected authorization request", "error", err)
		writeNotFound(w, "page not found")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := loginTemplate.Execute(w, loginPage{Params: params, Error: r.URL.Query().Get("error")}); err != nil {
		s.logger.Error("rendering login form failed", "error", err)
	}
}

// handleLogin checks the submitted credentials and redirects back to the
// platform with an authorization code.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeBadRequest(w, "invalid form")
		return
	}
	params := auth.ParamsFrom(r.PostForm)
	client, err := s.auth.ValidateRequest(params)
	if err != nil {
		s.logger.Debug("rejected authorization request", "error", err)
		writeNotFound(w, "page not found")
		return
	}

	user, err := s.auth.Authenticate(r.PostForm.Get("email"), r.PostForm.Get("password"))
	if err != nil {
		s.logger.Info("login failed", "client_id", params.ClientID)
		q := params.Values()
		q.Set("error", "email")
		http.Redirect(w, r, "/auth/login?"+q.Encode(), http.StatusFound)
		return
	}

	code, err := s.auth.IssueCode(client, user)
	if err != nil {
		s.logger.Error("issuing authorization code failed", "error", err)
		writeInternalError(w, "internal server error")
		return
	}

	s.logger.Info("account linked", "user", user.ID, "app_id", client.AppID)
	http.Redirect(w, r, s.auth.RedirectURL(params, code), http.StatusFound)
}

// handleToken exchanges an authorization code for an access token.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeBadRequest(w, "invalid form")
		return
	}

	token, err := s.auth.Exchange(r.PostForm.Get("code"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, token)
	case errors.Is(err, auth.ErrTokenMissing):
		writeBadRequest(w, "code is required")
	case errors.Is(err, auth.ErrTokenInvalid):
		writeUnauthorized(w, "invalid or expired code")
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrClientNotFound):
		writeNotFound(w, "account not found")
	default:
		s.logger.Error("exchanging authorization code failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}
