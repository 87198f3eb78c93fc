// Package token provides the token verifier collaborator: it extracts a JWT
// from an incoming request, verifies it against a remote key set, and reports
// the result as an explicit tagged value instead of overloading nil/false.
package token

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/betterportal/gateway/internal/auth/domain"
	apperrors "github.com/betterportal/gateway/internal/errors"
)

// Status tags the outcome of a verification attempt.
type Status int

const (
	// StatusAbsent means no token was presented at all.
	StatusAbsent Status = iota

	// StatusInvalid means a token was presented but failed verification
	// (malformed, bad signature, expired, wrong issuer).
	StatusInvalid

	// StatusValid means the token verified and decoded successfully.
	StatusValid
)

// Result is the tagged outcome of a verification attempt. Token is non-nil
// only when Status is StatusValid.
type Result struct {
	Status Status
	Token  *domain.AuthToken
}

// Source selects where a token may be presented on the request.
type Source int

const (
	// SourceHeader accepts only the Authorization header ("Bearer <token>").
	SourceHeader Source = iota

	// SourceQuery accepts only the "auth" query parameter.
	SourceQuery

	// SourceHeaderOrQuery accepts either, header first.
	SourceHeaderOrQuery
)

const (
	bearerPrefix = "bearer "
	queryKey     = "auth"
)

// Verifier verifies the token carried by a request. Implementations must
// return an error only for internal failures (e.g. the key set endpoint being
// unreachable); a missing or bad token is a Result, not an error.
type Verifier interface {
	Verify(ctx context.Context, r *http.Request, source Source) (Result, error)
}

// ErrKeySetUnavailable indicates the remote key set could not be fetched.
// The authorization gate fails closed on it.
var ErrKeySetUnavailable = apperrors.New("key set unavailable")

// JWKSVerifier verifies JWTs against keys fetched from a remote JWKS
// endpoint. Keys are cached for the process lifetime and refreshed once when
// an unknown key id is seen.
type JWKSVerifier struct {
	issuer string
	keys   *keyCache
	logger *slog.Logger
}

// NewJWKSVerifier creates a verifier trusting tokens issued by issuer and
// signed with a key published at jwksURL. Key-set fetches are bounded by
// timeout.
func NewJWKSVerifier(jwksURL, issuer string, timeout time.Duration, logger *slog.Logger) *JWKSVerifier {
	return &JWKSVerifier{
		issuer: issuer,
		keys:   newKeyCache(jwksURL, timeout),
		logger: logger,
	}
}

// Verify extracts and verifies the request's token per the source policy.
func (v *JWKSVerifier) Verify(ctx context.Context, r *http.Request, source Source) (Result, error) {
	raw, ok := extractToken(r, source)
	if !ok {
		return Result{Status: StatusAbsent}, nil
	}
	if raw == "" {
		return Result{Status: StatusInvalid}, nil
	}

	claims := &portalClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.keyFor(ctx, kid)
	},
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}),
	)
	if err != nil {
		if apperrors.Is(err, ErrKeySetUnavailable) {
			return Result{}, err
		}
		v.logger.Debug("token verification failed", slog.String("error", err.Error()))
		return Result{Status: StatusInvalid}, nil
	}

	return Result{Status: StatusValid, Token: claims.toAuthToken()}, nil
}

// extractToken pulls the raw token string from the request. The second return
// value is false when no token was presented at all; an empty token with a
// bearer prefix counts as presented-but-empty.
func extractToken(r *http.Request, source Source) (string, bool) {
	if source == SourceHeader || source == SourceHeaderOrQuery {
		header := r.Header.Get("Authorization")
		if header != "" {
			if len(header) >= len(bearerPrefix) &&
				strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
				return strings.TrimSpace(header[len(bearerPrefix):]), true
			}
			// A non-bearer Authorization header is a presented, bad token.
			return "", true
		}
	}
	if source == SourceQuery || source == SourceHeaderOrQuery {
		if values, ok := r.URL.Query()[queryKey]; ok && len(values) > 0 {
			return strings.TrimSpace(values[0]), true
		}
	}
	return "", false
}
