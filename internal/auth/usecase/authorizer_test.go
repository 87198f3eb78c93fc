package usecase

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betterportal/gateway/internal/auth/domain"
	apperrors "github.com/betterportal/gateway/internal/errors"
	"github.com/betterportal/gateway/internal/token"
)

// stubVerifier returns a canned verification result.
type stubVerifier struct {
	result token.Result
	err    error
}

func (s *stubVerifier) Verify(_ context.Context, _ *http.Request, _ token.Source) (token.Result, error) {
	return s.result, s.err
}

func newTestAuthorizer(result token.Result, err error) *Authorizer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthorizer(&stubVerifier{result: result, err: err}, logger)
}

func newRequest() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
	req.Header.Set("Referer", "https://portal.example.com/app")
	return req
}

func invoicePermission() domain.BasePermission {
	return domain.BasePermission{
		ID:     "invoices",
		Name:   "Invoices",
		Action: domain.ReadAction,
		Fields: []domain.PermissionField{
			{ID: "amount", FieldPath: "$.amount"},
			{ID: "customer", FieldPath: "$.customer"},
		},
	}
}

func validToken(perms domain.ClientPermissions) token.Result {
	return token.Result{
		Status: token.StatusValid,
		Token: &domain.AuthToken{
			ClientID:          "client-1",
			ClientPermissions: perms,
		},
	}
}

func TestAuthorize_PublicRoute(t *testing.T) {
	authorizer := newTestAuthorizer(token.Result{Status: token.StatusAbsent}, nil)

	outcome := authorizer.Authorize(context.Background(), newRequest(), "billing", nil, token.SourceHeader)

	require.True(t, outcome.Success)
	assert.Nil(t, outcome.Token)
	assert.Empty(t, outcome.ClientID)
	assert.Nil(t, outcome.VisibleFields)
}

func TestAuthorize_HostValidation(t *testing.T) {
	authorizer := newTestAuthorizer(token.Result{Status: token.StatusAbsent}, nil)

	tests := []struct {
		name    string
		referer string
		origin  string
		wantOK  bool
	}{
		{name: "RefererWithPath", referer: "https://portal.example.com/app", wantOK: true},
		{name: "OriginFallback", origin: "https://portal.example.com/", wantOK: true},
		{name: "NoScheme", referer: "portal.example.com/app", wantOK: false},
		{name: "NoPath", referer: "https://portal.example.com", wantOK: false},
		{name: "NoHeadersAtAll", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}

			// A public route isolates the host step from the rest.
			outcome := authorizer.Authorize(context.Background(), req, "billing", nil, token.SourceHeader)

			if tt.wantOK {
				assert.True(t, outcome.Success)
			} else {
				assert.False(t, outcome.Success)
				assert.Equal(t, http.StatusBadRequest, outcome.Code)
				assert.Equal(t, "Invalid request", outcome.Message)
			}
		})
	}
}

func TestAuthorize_VerifierOutcomes(t *testing.T) {
	required := domain.Require(invoicePermission())

	tests := []struct {
		name        string
		result      token.Result
		err         error
		wantCode    int
		wantMessage string
	}{
		{
			name:        "AbsentToken",
			result:      token.Result{Status: token.StatusAbsent},
			wantCode:    http.StatusUnauthorized,
			wantMessage: "No auth",
		},
		{
			name:        "InvalidToken",
			result:      token.Result{Status: token.StatusInvalid},
			wantCode:    http.StatusUnauthorized,
			wantMessage: "Invalid auth",
		},
		{
			name:        "VerifierError",
			err:         apperrors.New("key set unavailable"),
			wantCode:    http.StatusForbidden,
			wantMessage: "Server error",
		},
		{
			name:        "ValidButNilToken",
			result:      token.Result{Status: token.StatusValid},
			wantCode:    http.StatusUnauthorized,
			wantMessage: "Invalid token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authorizer := newTestAuthorizer(tt.result, tt.err)

			outcome := authorizer.Authorize(context.Background(), newRequest(), "billing", required, token.SourceHeader)

			assert.False(t, outcome.Success)
			assert.Equal(t, tt.wantCode, outcome.Code)
			assert.Equal(t, tt.wantMessage, outcome.Message)
		})
	}
}

func TestAuthorize_OptionalAuth(t *testing.T) {
	authorizer := newTestAuthorizer(validToken(nil), nil)
	required := domain.RequireOptional(invoicePermission())

	outcome := authorizer.Authorize(context.Background(), newRequest(), "billing", required, token.SourceHeader)

	require.True(t, outcome.Success)
	require.NotNil(t, outcome.Token)
	// Optional auth skips the matcher entirely and also skips client binding.
	assert.Empty(t, outcome.ClientID)
	assert.Equal(t, []string{"$.amount", "$.customer"}, outcome.VisibleFields)
}

func TestAuthorize_ClientBinding(t *testing.T) {
	required := domain.Require(invoicePermission())

	tests := []struct {
		name   string
		result token.Result
	}{
		{
			name: "NoClientID",
			result: token.Result{
				Status: token.StatusValid,
				Token: &domain.AuthToken{
					ClientPermissions: domain.ClientPermissions{"billing": {"root"}},
				},
			},
		},
		{
			name: "NoClientPermissions",
			result: token.Result{
				Status: token.StatusValid,
				Token:  &domain.AuthToken{ClientID: "client-1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authorizer := newTestAuthorizer(tt.result, nil)

			outcome := authorizer.Authorize(context.Background(), newRequest(), "billing", required, token.SourceHeader)

			assert.False(t, outcome.Success)
			assert.Equal(t, http.StatusForbidden, outcome.Code)
			assert.Equal(t, "Invalid client", outcome.Message)
		})
	}
}

func TestAuthorize_PermissionDecision(t *testing.T) {
	required := domain.Require(invoicePermission())

	t.Run("Granted", func(t *testing.T) {
		authorizer := newTestAuthorizer(validToken(domain.ClientPermissions{
			"billing": {"invoices:read:amount"},
		}), nil)

		outcome := authorizer.Authorize(context.Background(), newRequest(), "billing", required, token.SourceHeader)

		require.True(t, outcome.Success)
		assert.Equal(t, "client-1", outcome.ClientID)
		assert.Equal(t, []string{"$.amount"}, outcome.VisibleFields)
	})

	t.Run("Denied", func(t *testing.T) {
		authorizer := newTestAuthorizer(validToken(domain.ClientPermissions{
			"billing": {"invoices:delete:*"},
		}), nil)

		outcome := authorizer.Authorize(context.Background(), newRequest(), "billing", required, token.SourceHeader)

		assert.False(t, outcome.Success)
		assert.Equal(t, http.StatusForbidden, outcome.Code)
		assert.Equal(t, "No permissions", outcome.Message)
	})
}

func TestAuthorize_TwoFactor(t *testing.T) {
	permission := invoicePermission()
	permission.Require2FA = true
	required := domain.Require(permission)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		setup       bool
		last2FA     time.Time
		wantCode    int
		wantMessage string
		wantSuccess bool
	}{
		{
			name:        "NoSetup",
			setup:       false,
			wantCode:    http.StatusProxyAuthRequired,
			wantMessage: "2FA Setup required",
		},
		{
			name:        "StaleChallenge",
			setup:       true,
			last2FA:     now.Add(-6 * time.Minute),
			wantCode:    http.StatusProxyAuthRequired,
			wantMessage: "OTP required",
		},
		{
			name:        "RecentChallenge",
			setup:       true,
			last2FA:     now.Add(-time.Minute),
			wantSuccess: true,
		},
		{
			name:        "ExactlyAtWindowEdge",
			setup:       true,
			last2FA:     now.Add(-twoFactorWindow),
			wantSuccess: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validToken(domain.ClientPermissions{domain.RootScopeKey: {domain.RootGrant}})
			result.Token.Has2FASetup = tt.setup
			result.Token.Last2FATime = tt.last2FA.UnixMilli()

			authorizer := newTestAuthorizer(result, nil)
			authorizer.now = func() time.Time { return now }

			outcome := authorizer.Authorize(context.Background(), newRequest(), "billing", required, token.SourceHeader)

			if tt.wantSuccess {
				assert.True(t, outcome.Success)
			} else {
				assert.False(t, outcome.Success)
				assert.Equal(t, tt.wantCode, outcome.Code)
				assert.Equal(t, tt.wantMessage, outcome.Message)
			}
		})
	}
}

func TestAuthorizeLegacy(t *testing.T) {
	t.Run("BlankPermissionNeedsOnlyAToken", func(t *testing.T) {
		authorizer := newTestAuthorizer(validToken(nil), nil)

		outcome := authorizer.AuthorizeLegacy(context.Background(), newRequest(), "billing", "", false, nil, token.SourceHeader)

		require.True(t, outcome.Success)
		require.NotNil(t, outcome.Token)
		assert.Empty(t, outcome.ClientID)
	})

	t.Run("LiteralGrant", func(t *testing.T) {
		authorizer := newTestAuthorizer(validToken(domain.ClientPermissions{
			"billing": {"invoices.view", "invoices.approve"},
		}), nil)

		outcome := authorizer.AuthorizeLegacy(context.Background(), newRequest(), "billing", "invoices.view", false,
			[]string{"invoices.approve", "invoices.export"}, token.SourceHeader)

		require.True(t, outcome.Success)
		assert.Equal(t, "client-1", outcome.ClientID)
		assert.Equal(t, []string{"invoices.approve"}, outcome.Roles)
	})

	t.Run("RootScopeGrant", func(t *testing.T) {
		authorizer := newTestAuthorizer(validToken(domain.ClientPermissions{
			domain.RootScopeKey: {domain.RootGrant},
		}), nil)

		outcome := authorizer.AuthorizeLegacy(context.Background(), newRequest(), "billing", "invoices.view", false, nil, token.SourceHeader)

		assert.True(t, outcome.Success)
	})

	t.Run("MissingGrant", func(t *testing.T) {
		authorizer := newTestAuthorizer(validToken(domain.ClientPermissions{
			"billing": {"invoices.view"},
		}), nil)

		outcome := authorizer.AuthorizeLegacy(context.Background(), newRequest(), "billing", "invoices.export", false, nil, token.SourceHeader)

		assert.False(t, outcome.Success)
		assert.Equal(t, http.StatusForbidden, outcome.Code)
		assert.Equal(t, "No permissions", outcome.Message)
	})
}
