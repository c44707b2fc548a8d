package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// OAuthExchanger performs the actual authorization-code exchange with a
// vendor's OAuth endpoint. Credential storage and the authorize/callback
// dance are explicitly out of this core's scope (spec.md §1: "the core
// receives credentials ready to use plus a refresh-token hook") — this
// interface is the seam a workflow engine plugs its own implementation
// into; when unset, the routes below report 501 rather than fabricate a
// token exchange the core was never meant to own.
type OAuthExchanger interface {
	AuthorizeURL(provider string, req AuthorizeRequest) (authURL, state string, err error)
	HandleCallback(provider, code, state string) (CallbackResult, error)
}

// AuthorizeRequest is the body of POST /api/oauth/authorize/:provider.
type AuthorizeRequest struct {
	ReturnURL    string   `json:"returnUrl"`
	Scopes       []string `json:"scopes"`
	ConnectionID string   `json:"connectionId"`
	Label        string   `json:"label"`
}

// CallbackResult is what HandleCallback resolves to, enough to build the
// 302 redirect spec.md §6.4 describes.
type CallbackResult struct {
	ReturnURL    string
	ConnectionID string
	Email        string
}

func (s *Server) handleOAuthAuthorize(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if s.OAuth == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{
			"error": "oauth_not_configured", "message": "no OAuthExchanger registered for this deployment",
		})
		return
	}
	var req AuthorizeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	authURL, state, err := s.OAuth.AuthorizeURL(provider, req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"authUrl": authURL, "state": state})
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	if s.OAuth == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{
			"error": "oauth_not_configured", "message": "no OAuthExchanger registered for this deployment",
		})
		return
	}

	result, err := s.OAuth.HandleCallback(provider, code, state)
	if err != nil {
		writeErr(w, err)
		return
	}

	redirectTo := result.ReturnURL + "?code=" + code + "&state=" + state + "&provider=" + provider
	if result.ConnectionID != "" {
		redirectTo += "&connectionId=" + result.ConnectionID
	}
	if result.Email != "" {
		redirectTo += "&email=" + result.Email
	}
	http.Redirect(w, r, redirectTo, http.StatusFound)
}
