package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"zoho-mirror-api/internal/repository"
)

// TokenProvider exchanges the stored refresh token for short-lived
// access tokens. The access token is kept in memory only; the refresh
// token is persisted through the ConfigStore and is mutated exclusively
// by the one-time authorization-code exchange.
type TokenProvider struct {
	store       repository.ConfigStore
	accountsURL string
	client      *http.Client

	mu       sync.Mutex
	token    string
	inflight *refreshCall
}

// refreshCall tracks one outbound refresh request so that concurrent
// callers coalesce onto it instead of racing the token endpoint.
// Two parallel refresh calls can invalidate each other's result.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

// NewTokenProvider creates a token provider backed by the credential record.
func NewTokenProvider(store repository.ConfigStore, accountsURL string, timeout time.Duration) *TokenProvider {
	return &TokenProvider{
		store:       store,
		accountsURL: strings.TrimRight(accountsURL, "/"),
		client:      &http.Client{Timeout: timeout},
	}
}

// AccessToken returns the cached access token, refreshing once if none
// has been obtained yet.
func (p *TokenProvider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.token != "" {
		token := p.token
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	return p.ForceRefresh(ctx)
}

// ForceRefresh exchanges the refresh token for a new access token.
// Concurrent calls collapse to a single outbound request and all
// receive its result.
func (p *TokenProvider) ForceRefresh(ctx context.Context) (string, error) {
	p.mu.Lock()
	if c := p.inflight; c != nil {
		p.mu.Unlock()
		select {
		case <-c.done:
			return c.token, c.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c := &refreshCall{done: make(chan struct{})}
	p.inflight = c
	p.mu.Unlock()

	token, err := p.refresh(ctx)

	p.mu.Lock()
	c.token, c.err = token, err
	if err == nil {
		p.token = token
	}
	p.inflight = nil
	p.mu.Unlock()
	close(c.done)

	return token, err
}

// refresh performs the refresh_token grant against the token endpoint.
func (p *TokenProvider) refresh(ctx context.Context) (string, error) {
	cfg, err := p.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load credential record: %w", err)
	}
	if !cfg.Connected() {
		return "", ErrNotConfigured
	}

	form := url.Values{
		"client_id":     {cfg.ClientID},
		"client_secret": {cfg.ClientSecret},
		"refresh_token": {cfg.RefreshToken},
		"grant_type":    {"refresh_token"},
	}

	body, err := p.postToken(ctx, form)
	if err != nil {
		return "", err
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.AccessToken == "" {
		return "", &AuthError{Status: http.StatusOK, Body: "response contained no access_token"}
	}

	log.Printf("[TokenProvider] Access token refreshed for org %s", cfg.OrgID)
	return payload.AccessToken, nil
}

// ExchangeCode performs the one-time authorization_code grant. On
// success the returned refresh token is persisted to the credential
// record and the access token is cached.
func (p *TokenProvider) ExchangeCode(ctx context.Context, code string) error {
	cfg, err := p.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load credential record: %w", err)
	}
	if !cfg.Configured() {
		return ErrNotConfigured
	}

	form := url.Values{
		"code":          {code},
		"client_id":     {cfg.ClientID},
		"client_secret": {cfg.ClientSecret},
		"redirect_uri":  {cfg.RedirectURI},
		"grant_type":    {"authorization_code"},
	}

	body, err := p.postToken(ctx, form)
	if err != nil {
		return err
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil ||
		payload.AccessToken == "" || payload.RefreshToken == "" {
		return &AuthError{Status: http.StatusOK, Body: "response missing access_token and/or refresh_token"}
	}

	cfg.RefreshToken = payload.RefreshToken
	if err := p.store.Save(ctx, cfg); err != nil {
		return fmt.Errorf("failed to persist refresh token: %w", err)
	}

	p.mu.Lock()
	p.token = payload.AccessToken
	p.mu.Unlock()

	log.Printf("[TokenProvider] Refresh token obtained for org %s", cfg.OrgID)
	return nil
}

// AuthURL builds the user consent URL that starts the
// authorization-code flow.
func (p *TokenProvider) AuthURL(ctx context.Context, scopes string) (string, error) {
	cfg, err := p.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load credential record: %w", err)
	}
	if cfg.ClientID == "" || cfg.RedirectURI == "" {
		return "", ErrNotConfigured
	}

	q := url.Values{
		"scope":         {scopes},
		"client_id":     {cfg.ClientID},
		"response_type": {"code"},
		"access_type":   {"offline"},
		"redirect_uri":  {cfg.RedirectURI},
	}
	return p.accountsURL + "/oauth/v2/auth?" + q.Encode(), nil
}

func (p *TokenProvider) postToken(ctx context.Context, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.accountsURL+"/oauth/v2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
