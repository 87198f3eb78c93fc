package token

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/betterportal/gateway/internal/auth/domain"
)

// portalClaims is the wire shape of a portal JWT. It embeds the registered
// claims for signature/expiry validation and adds the portal identity fields.
type portalClaims struct {
	jwt.RegisteredClaims

	Host     string `json:"host"`
	Verified bool   `json:"verified"`

	Name    string `json:"name"`
	Surname string `json:"surname,omitempty"`
	Email   string `json:"email"`

	UserID   string `json:"userId"`
	AppID    string `json:"appId"`
	TenantID string `json:"tenantId"`

	ClientID          string                   `json:"clientId,omitempty"`
	ClientName        string                   `json:"clientName,omitempty"`
	ClientPermissions domain.ClientPermissions `json:"clientPermissions,omitempty"`

	Has2FASetup bool  `json:"has2FASetup"`
	Last2FATime int64 `json:"last2FATime"`

	SessionKey     string `json:"sessionKey"`
	SessionStarted int64  `json:"sessionStarted"`

	IP    string `json:"ip"`
	Scope string `json:"scope"`
}

// toAuthToken converts verified claims into the immutable domain token.
func (c *portalClaims) toAuthToken() *domain.AuthToken {
	token := &domain.AuthToken{
		Host:              c.Host,
		Issuer:            c.Issuer,
		Verified:          c.Verified,
		Name:              c.Name,
		Surname:           c.Surname,
		Email:             c.Email,
		UserID:            c.UserID,
		AppID:             c.AppID,
		TenantID:          c.TenantID,
		ClientID:          c.ClientID,
		ClientName:        c.ClientName,
		ClientPermissions: c.ClientPermissions,
		Has2FASetup:       c.Has2FASetup,
		Last2FATime:       c.Last2FATime,
		SessionKey:        c.SessionKey,
		SessionStarted:    c.SessionStarted,
		IP:                c.IP,
		Scope:             c.Scope,
		Subject:           c.Subject,
		TokenID:           c.ID,
	}
	if c.ExpiresAt != nil {
		token.ExpiresAt = c.ExpiresAt.Unix()
	}
	if c.NotBefore != nil {
		token.NotBefore = c.NotBefore.Unix()
	}
	if c.IssuedAt != nil {
		token.IssuedAt = c.IssuedAt.Unix()
	}
	return token
}
