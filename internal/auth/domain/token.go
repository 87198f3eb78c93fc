// Package domain defines authentication and authorization domain models.
// Implements grant-based access control where callers carry per-service
// permission grants inside a verified token.
package domain

// RootScopeKey is the distinguished ClientPermissions key holding grants that
// apply across all services.
const RootScopeKey = "_"

// RootGrant is the literal grant string that gives unconditional access within
// its scope.
const RootGrant = "root"

// ClientPermissions maps a lower-cased service name to its permission grant
// strings. Grant strings follow the "<permissionId>:<action>:<fieldId>"
// grammar and are opaque tokens, matched by exact segment or wildcard.
type ClientPermissions map[string][]string

// RootScope returns the grants that apply across all services.
func (p ClientPermissions) RootScope() []string {
	return p[RootScopeKey]
}

// AuthToken is the decoded identity of a caller, received from the token
// verifier already signature-checked. It is immutable: the core only reads it.
type AuthToken struct {
	Host     string `json:"host"`
	Issuer   string `json:"iss"`
	Verified bool   `json:"verified"`

	Name    string `json:"name"`
	Surname string `json:"surname,omitempty"`
	Email   string `json:"email"`

	UserID   string `json:"userId"`
	AppID    string `json:"appId"`
	TenantID string `json:"tenantId"`

	ClientID          string            `json:"clientId,omitempty"`
	ClientName        string            `json:"clientName,omitempty"`
	ClientPermissions ClientPermissions `json:"clientPermissions,omitempty"`

	Has2FASetup bool `json:"has2FASetup"`
	// Last2FATime is the unix-millisecond timestamp of the most recent
	// second-factor assertion.
	Last2FATime int64 `json:"last2FATime"`

	SessionKey     string `json:"sessionKey"`
	SessionStarted int64  `json:"sessionStarted"`

	IP    string `json:"ip"`
	Scope string `json:"scope"`

	Subject   string `json:"sub"`
	TokenID   string `json:"jti"`
	ExpiresAt int64  `json:"exp"`
	NotBefore int64  `json:"nbf"`
	IssuedAt  int64  `json:"iat"`
}
