package portal

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/betterportal/gateway/internal/auth/domain"
	"github.com/betterportal/gateway/internal/cachecontrol"
	"github.com/betterportal/gateway/internal/capability"
	apperrors "github.com/betterportal/gateway/internal/errors"
	"github.com/betterportal/gateway/internal/httputil"
	"github.com/betterportal/gateway/internal/token"
)

const portalService = "betterportal"

// registerInternalCapabilities publishes the built-in permissions capability.
// It serves the permissions every mounted route and capability has declared.
func (p *Portal) registerInternalCapabilities() {
	p.registry.Register(capability.Registration{
		Service: portalService,
		Kind:    capability.KindPermissions,
		Keys:    map[string]string{"permissions": "permissions"},
		Handler: func(_ context.Context, _ *domain.AuthToken, _ string, _ string, _ map[string]string) (any, error) {
			return p.declaredPermissions(), nil
		},
	})
}

// registerCapabilityRoutes mounts the discovery and dispatch endpoints.
func (p *Portal) registerCapabilityRoutes() {
	p.Get(portalService, "/bp/capabilities/", nil, p.discoveryHandler)
	p.Get(portalService, "/bp/capabilities/:capability/", nil, p.dispatchHandler)
	p.Get(portalService, "/bp/capabilities/:capability/:key/", nil, p.dispatchHandler)
}

// discoveryHandler serves the deduplicated kind-to-key-names map, hashed for
// cache validation.
func (p *Portal) discoveryHandler(c *gin.Context, _ *Identity, cache CacheCheck) {
	known := p.registry.Kinds()

	if cache(p.registry.DiscoveryHash(), cachecontrol.Config{
		Ability:             cachecontrol.AbilityAll,
		MaxAge:              60 * 60 * 24,
		RevalidationSeconds: -1,
	}) {
		c.JSON(200, known)
	}
}

// dispatchHandler fans a dispatch call out over the matching registrations.
// Internal kinds bypass authorization. Configurable kinds run the gate with
// each candidate's own declared permission, and the first failure ends the
// request with that candidate's error; a candidate with no declared
// permission is served anonymously when no valid token is presented.
func (p *Portal) dispatchHandler(c *gin.Context, _ *Identity, _ CacheCheck) {
	kind, ok := capability.ParseKind(c.Param("capability"))
	if !ok {
		httputil.HandleErrorGin(c, apperrors.Wrap(apperrors.ErrNoCapability, c.Param("capability")), p.logger)
		return
	}
	keyName := c.Param("key")

	query := make(map[string]string)
	for name, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			query[name] = values[0]
		}
	}

	candidates := p.registry.Query(kind, keyName)
	responses := make([]any, 0, len(candidates))
	for _, candidate := range candidates {
		var authToken *domain.AuthToken
		clientID := ""

		if !kind.Internal() {
			required := domain.RequireOptional(domain.BasePermission{})
			if candidate.Permission != nil {
				required = domain.Require(*candidate.Permission)
			}

			outcome := p.authorizer.Authorize(c.Request.Context(), c.Request, candidate.Service, required, token.SourceHeaderOrQuery)
			p.gateway.RecordAuthDecision(c.Request.Context(), candidate.Service, outcomeLabel(outcome))
			switch {
			case outcome.Success:
				authToken = outcome.Token
				clientID = outcome.ClientID
			case candidate.Permission == nil:
				// A candidate without a permission serves anonymous
				// callers; a token is attached only when one verifies.
			default:
				c.JSON(outcome.Code, httputil.ErrorResponse{
					Error:   errorCode(outcome.Code),
					Message: outcome.Message,
				})
				return
			}
		}

		result, err := candidate.Handler(c.Request.Context(), authToken, clientID, candidate.Keys[keyName], query)
		if err != nil {
			p.logger.Error("capability handler failed",
				slog.String("service", candidate.Service),
				slog.String("kind", string(kind)),
				slog.String("key", keyName),
				slog.Any("error", err),
			)
			httputil.HandleErrorGin(c, err, p.logger)
			return
		}
		if result == nil {
			continue
		}
		responses = append(responses, result)
	}

	p.gateway.RecordCapabilityDispatch(c.Request.Context(), string(kind), len(responses))
	c.JSON(200, responses)
}
