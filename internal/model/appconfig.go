package model

import "time"

// ZohoConfig is the process-wide credential record for the Zoho
// connection. A single row exists; it is created lazily on first access
// and never deleted during normal operation.
type ZohoConfig struct {
	ID                   int64      `json:"id"`
	ClientID             string     `json:"zoho_client_id"`
	ClientSecret         string     `json:"-"`
	OrgID                string     `json:"zoho_org_id"`
	RedirectURI          string     `json:"zoho_redirect_uri"`
	RefreshToken         string     `json:"-"`
	LastSyncTime         *time.Time `json:"zoho_last_sync_time"`
	ConnectionConfigured bool       `json:"zoho_connection_configured"`
}

// Configured reports whether all four connection fields are set.
// ConnectionConfigured is derived from this on every save.
func (c *ZohoConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.OrgID != "" && c.RedirectURI != ""
}

// Connected reports whether the record is configured and a refresh
// token has been obtained through the authorization-code exchange.
func (c *ZohoConfig) Connected() bool {
	return c.Configured() && c.RefreshToken != ""
}
