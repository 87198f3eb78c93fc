// Package usecase implements the authorization gate that every registered
// route passes through before its handler runs.
package usecase

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/betterportal/gateway/internal/auth/domain"
	"github.com/betterportal/gateway/internal/token"
)

// twoFactorWindow is how recently a caller must have completed a second
// factor challenge for routes that require one.
const twoFactorWindow = 5 * time.Minute

// Outcome is the result of running the gate for one request. On failure Code
// and Message carry the HTTP status and reason; on success Token, ClientID and
// VisibleFields carry the narrowed identity handed to the route handler.
type Outcome struct {
	Success       bool
	Code          int
	Message       string
	Token         *domain.AuthToken
	ClientID      string
	VisibleFields []string
	Roles         []string
}

func failure(code int, message string) Outcome {
	return Outcome{Code: code, Message: message}
}

// Authorizer orchestrates token verification and permission matching.
type Authorizer struct {
	verifier token.Verifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthorizer creates an Authorizer backed by the given verifier.
func NewAuthorizer(verifier token.Verifier, logger *slog.Logger) *Authorizer {
	return &Authorizer{
		verifier: verifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Authorize runs the gate for a request against a route requirement. A nil
// required means the route is public and no identity is established at all.
func (a *Authorizer) Authorize(ctx context.Context, r *http.Request, serviceName string, required *domain.Required, source token.Source) Outcome {
	host, ok := requestHost(r)
	if !ok {
		a.logger.Warn("request host could not be parsed",
			slog.String("referer", r.Header.Get("Referer")),
			slog.String("origin", r.Header.Get("Origin")),
		)
		return failure(http.StatusBadRequest, "Invalid request")
	}
	a.logger.Info("request",
		slog.String("host", host),
		slog.String("path", r.URL.Path),
	)

	if required == nil {
		return Outcome{Success: true}
	}

	authToken, outcome, ok := a.verifyToken(ctx, r, source)
	if !ok {
		return outcome
	}

	if required.Optional {
		// Being logged in is enough; the permission only declares which
		// fields the handler may expose.
		return Outcome{
			Success:       true,
			Token:         authToken,
			VisibleFields: required.Permission.FieldPaths(),
		}
	}

	if authToken.ClientID == "" || authToken.ClientPermissions == nil {
		return failure(http.StatusForbidden, "Invalid client")
	}

	decision := domain.Evaluate(authToken.ClientPermissions, serviceName, required.Permission)
	if !decision.Granted {
		return failure(http.StatusForbidden, "No permissions")
	}

	if required.Permission.Require2FA {
		if outcome, ok := a.checkTwoFactor(authToken); !ok {
			return outcome
		}
	}

	return Outcome{
		Success:       true,
		Token:         authToken,
		ClientID:      authToken.ClientID,
		VisibleFields: decision.VisibleFields,
	}
}

// AuthorizeLegacy runs the gate with the coarse string-permission contract
// kept for older feature modules. A blank permission still requires a valid
// token but no specific grant; roles are filtered down to the ones the caller
// holds.
func (a *Authorizer) AuthorizeLegacy(ctx context.Context, r *http.Request, serviceName, permissionRequired string, require2FA bool, roles []string, source token.Source) Outcome {
	host, ok := requestHost(r)
	if !ok {
		a.logger.Warn("request host could not be parsed",
			slog.String("referer", r.Header.Get("Referer")),
			slog.String("origin", r.Header.Get("Origin")),
		)
		return failure(http.StatusBadRequest, "Invalid request")
	}
	a.logger.Info("request",
		slog.String("host", host),
		slog.String("path", r.URL.Path),
	)

	authToken, outcome, ok := a.verifyToken(ctx, r, source)
	if !ok {
		return outcome
	}

	if permissionRequired == "" {
		return Outcome{Success: true, Token: authToken}
	}

	if authToken.ClientID == "" || authToken.ClientPermissions == nil {
		return failure(http.StatusForbidden, "Invalid client")
	}

	if !domain.HasPermission(authToken.ClientPermissions, serviceName, permissionRequired) {
		return failure(http.StatusForbidden, "No permissions")
	}

	if require2FA {
		if outcome, ok := a.checkTwoFactor(authToken); !ok {
			return outcome
		}
	}

	granted := make([]string, 0, len(roles))
	for _, role := range roles {
		if domain.HasPermission(authToken.ClientPermissions, serviceName, role) {
			granted = append(granted, role)
		}
	}

	return Outcome{
		Success:  true,
		Token:    authToken,
		ClientID: authToken.ClientID,
		Roles:    granted,
	}
}

func (a *Authorizer) verifyToken(ctx context.Context, r *http.Request, source token.Source) (*domain.AuthToken, Outcome, bool) {
	result, err := a.verifier.Verify(ctx, r, source)
	if err != nil {
		// Fail closed, never retry.
		a.logger.Error("token verifier failed", slog.String("error", err.Error()))
		return nil, failure(http.StatusForbidden, "Server error"), false
	}
	switch result.Status {
	case token.StatusAbsent:
		return nil, failure(http.StatusUnauthorized, "No auth"), false
	case token.StatusInvalid:
		return nil, failure(http.StatusUnauthorized, "Invalid auth"), false
	}
	if result.Token == nil {
		return nil, failure(http.StatusUnauthorized, "Invalid token"), false
	}
	return result.Token, Outcome{}, true
}

func (a *Authorizer) checkTwoFactor(authToken *domain.AuthToken) (Outcome, bool) {
	if !authToken.Has2FASetup {
		return failure(http.StatusProxyAuthRequired, "2FA Setup required"), false
	}
	cutoff := a.now().Add(-twoFactorWindow).UnixMilli()
	if authToken.Last2FATime < cutoff {
		return failure(http.StatusProxyAuthRequired, "OTP required"), false
	}
	return Outcome{}, true
}

// requestHost extracts a bare lower-cased hostname from the Referer or Origin
// header. The hostname is informational only; token host binding is not
// enforced.
func requestHost(r *http.Request) (string, bool) {
	raw := r.Header.Get("Referer")
	if raw == "" {
		raw = r.Header.Get("Origin")
	}
	if raw == "" {
		raw = "undefined"
	}
	if len(raw) > 255 {
		raw = raw[:255]
	}

	_, after, found := strings.Cut(raw, "//")
	if !found {
		return "", false
	}
	host, _, found := strings.Cut(after, "/")
	if !found {
		return "", false
	}
	return strings.ToLower(host), true
}
