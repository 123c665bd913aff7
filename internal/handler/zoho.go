package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"zoho-mirror-api/internal/repository"
	"zoho-mirror-api/internal/zoho"
	"zoho-mirror-api/pkg/apierror"
	"zoho-mirror-api/pkg/response"
)

// ZohoHandler exposes the connection settings and the OAuth
// authorization-code flow.
type ZohoHandler struct {
	config      repository.ConfigStore
	tokens      *zoho.TokenProvider
	scopes      string
	frontendURL string
}

// NewZohoHandler creates a new Zoho connection handler.
func NewZohoHandler(config repository.ConfigStore, tokens *zoho.TokenProvider, scopes, frontendURL string) *ZohoHandler {
	return &ZohoHandler{
		config:      config,
		tokens:      tokens,
		scopes:      scopes,
		frontendURL: frontendURL,
	}
}

// AuthURL handles GET /api/v1/zoho/auth-url
func (h *ZohoHandler) AuthURL(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.tokens.AuthURL(r.Context(), h.scopes)
	if err != nil {
		if errors.Is(err, zoho.ErrNotConfigured) {
			response.Error(w, apierror.BadRequest("client id and redirect uri must be configured first"))
			return
		}
		response.Error(w, apierror.InternalError(""))
		return
	}
	response.OK(w, map[string]string{"auth_url": authURL})
}

// Callback handles GET /api/v1/zoho/callback. Zoho redirects here with
// the one-time authorization code; on success the browser is sent back
// to the frontend integration page.
func (h *ZohoHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		response.Error(w, apierror.BadRequest("missing authorization code"))
		return
	}

	if err := h.tokens.ExchangeCode(r.Context(), code); err != nil {
		if errors.Is(err, zoho.ErrNotConfigured) {
			response.Error(w, apierror.BadRequest("zoho connection is not configured"))
			return
		}
		var authErr *zoho.AuthError
		if errors.As(err, &authErr) {
			response.Error(w, apierror.BadGateway("zoho rejected the authorization code"))
			return
		}
		response.Error(w, apierror.InternalError(""))
		return
	}

	http.Redirect(w, r, h.frontendURL+"/integration", http.StatusFound)
}

// Settings handles GET /api/v1/zoho/settings. Secrets are never
// echoed; the serialized record only carries the public fields.
func (h *ZohoHandler) Settings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.config.Get(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError(""))
		return
	}
	response.OK(w, cfg)
}

// UpdateSettingsRequest carries the editable connection fields.
type UpdateSettingsRequest struct {
	ClientID     string `json:"zoho_client_id"`
	ClientSecret string `json:"zoho_client_secret"`
	OrgID        string `json:"zoho_org_id"`
	RedirectURI  string `json:"zoho_redirect_uri"`
}

// UpdateSettings handles PUT /api/v1/zoho/settings. An empty secret
// keeps the stored one so the frontend never has to resubmit it.
func (h *ZohoHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}

	cfg, err := h.config.Get(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError(""))
		return
	}

	cfg.ClientID = req.ClientID
	cfg.OrgID = req.OrgID
	cfg.RedirectURI = req.RedirectURI
	if req.ClientSecret != "" {
		cfg.ClientSecret = req.ClientSecret
	}

	if err := h.config.Save(r.Context(), cfg); err != nil {
		response.Error(w, apierror.InternalError(""))
		return
	}
	response.OK(w, cfg)
}

// Connect handles POST /api/v1/zoho/connect. It verifies the stored
// credentials by forcing a token refresh.
func (h *ZohoHandler) Connect(w http.ResponseWriter, r *http.Request) {
	if _, err := h.tokens.ForceRefresh(r.Context()); err != nil {
		if errors.Is(err, zoho.ErrNotConfigured) {
			response.Error(w, apierror.BadRequest("zoho connection is not configured"))
			return
		}
		var authErr *zoho.AuthError
		if errors.As(err, &authErr) {
			response.Error(w, apierror.BadGateway("zoho rejected the stored credentials"))
			return
		}
		response.Error(w, apierror.ServiceUnavailable("zoho accounts endpoint unreachable"))
		return
	}
	response.OK(w, map[string]bool{"connected": true})
}
