// Package portal is the public surface feature modules build on: authorized
// route registration, capability publication and UI bundle mounting.
package portal

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/betterportal/gateway/internal/auth/domain"
	"github.com/betterportal/gateway/internal/auth/usecase"
	"github.com/betterportal/gateway/internal/cachecontrol"
	"github.com/betterportal/gateway/internal/capability"
	"github.com/betterportal/gateway/internal/httputil"
	"github.com/betterportal/gateway/internal/metrics"
	"github.com/betterportal/gateway/internal/token"
)

// Identity is the narrowed caller identity handed to route handlers. Token is
// nil on public routes and on optional-auth fallbacks.
type Identity struct {
	Token         *domain.AuthToken
	ClientID      string
	VisibleFields []string
}

// CacheCheck validates the request against a content hash. It returns true
// when the handler should send a fresh document; on a validator match it has
// already written the 304.
type CacheCheck func(etag string, cfg cachecontrol.Config) bool

// HandlerFunc handles one authorized request.
type HandlerFunc func(c *gin.Context, ident *Identity, cache CacheCheck)

// routeOptions carries per-route settings beyond the permission requirement.
type routeOptions struct {
	source            token.Source
	anonymousFallback bool
}

// RouteOption customizes a route registration.
type RouteOption func(*routeOptions)

// WithTokenSource sets where the route accepts its token.
func WithTokenSource(source token.Source) RouteOption {
	return func(o *routeOptions) { o.source = source }
}

// WithAnonymousFallback makes gate failures fall through to the handler with
// a nil identity instead of ending the request.
func WithAnonymousFallback() RouteOption {
	return func(o *routeOptions) { o.anonymousFallback = true }
}

// Portal wires the authorization gate in front of every registered route and
// tracks the declared permissions for discovery.
type Portal struct {
	router       gin.IRouter
	authorizer   *usecase.Authorizer
	registry     *capability.Registry
	gateway      metrics.GatewayMetrics
	logger       *slog.Logger
	cacheEnabled bool

	mu          sync.Mutex
	permissions map[string][]domain.BasePermission
}

// New creates a Portal mounting its routes on router. The internal
// permissions capability is registered immediately so discovery reflects
// every route declared afterwards.
func New(
	router gin.IRouter,
	authorizer *usecase.Authorizer,
	registry *capability.Registry,
	gateway metrics.GatewayMetrics,
	logger *slog.Logger,
	cacheEnabled bool,
) *Portal {
	p := &Portal{
		router:       router,
		authorizer:   authorizer,
		registry:     registry,
		gateway:      gateway,
		logger:       logger,
		cacheEnabled: cacheEnabled,
		permissions:  make(map[string][]domain.BasePermission),
	}
	p.registerInternalCapabilities()
	p.registerCapabilityRoutes()
	return p
}

// Get registers an authorized GET route.
func (p *Portal) Get(serviceName, path string, required *domain.Required, handler HandlerFunc, opts ...RouteOption) {
	p.router.GET(path, p.wrap(serviceName, required, handler, opts))
	p.declare(serviceName, required)
}

// Post registers an authorized POST route.
func (p *Portal) Post(serviceName, path string, required *domain.Required, handler HandlerFunc, opts ...RouteOption) {
	p.router.POST(path, p.wrap(serviceName, required, handler, opts))
	p.declare(serviceName, required)
}

// Put registers an authorized PUT route.
func (p *Portal) Put(serviceName, path string, required *domain.Required, handler HandlerFunc, opts ...RouteOption) {
	p.router.PUT(path, p.wrap(serviceName, required, handler, opts))
	p.declare(serviceName, required)
}

// Delete registers an authorized DELETE route.
func (p *Portal) Delete(serviceName, path string, required *domain.Required, handler HandlerFunc, opts ...RouteOption) {
	p.router.DELETE(path, p.wrap(serviceName, required, handler, opts))
	p.declare(serviceName, required)
}

// Patch registers an authorized PATCH route.
func (p *Portal) Patch(serviceName, path string, required *domain.Required, handler HandlerFunc, opts ...RouteOption) {
	p.router.PATCH(path, p.wrap(serviceName, required, handler, opts))
	p.declare(serviceName, required)
}

// AddCapability publishes a capability registration.
func (p *Portal) AddCapability(serviceName string, kind capability.Kind, keys map[string]string, handler capability.Handler, permission *domain.BasePermission) {
	p.registry.Register(capability.Registration{
		Service:    serviceName,
		Kind:       kind,
		Keys:       keys,
		Handler:    handler,
		Permission: permission,
	})
	if permission != nil {
		p.mu.Lock()
		p.permissions[serviceName] = append(p.permissions[serviceName], *permission)
		p.mu.Unlock()
	}
}

// wrap builds the gin handler running the authorization gate before the
// route's own handler.
func (p *Portal) wrap(serviceName string, required *domain.Required, handler HandlerFunc, opts []RouteOption) gin.HandlerFunc {
	options := routeOptions{source: token.SourceHeader}
	for _, opt := range opts {
		opt(&options)
	}

	return func(c *gin.Context) {
		// Authorization results must never be cached by intermediaries.
		// Handlers serving content-addressed documents replace this via
		// the cache check.
		c.Header("Cache-Control", "no-store, no-cache, max-age=0, must-revalidate")

		outcome := p.authorizer.Authorize(c.Request.Context(), c.Request, serviceName, required, options.source)
		p.gateway.RecordAuthDecision(c.Request.Context(), serviceName, outcomeLabel(outcome))

		cache := func(etag string, cfg cachecontrol.Config) bool {
			return cachecontrol.Check(c, p.cacheEnabled, etag, cfg)
		}

		if !outcome.Success {
			if options.anonymousFallback {
				handler(c, nil, cache)
				return
			}
			c.JSON(outcome.Code, httputil.ErrorResponse{
				Error:   errorCode(outcome.Code),
				Message: outcome.Message,
			})
			return
		}

		handler(c, &Identity{
			Token:         outcome.Token,
			ClientID:      outcome.ClientID,
			VisibleFields: outcome.VisibleFields,
		}, cache)
	}
}

func (p *Portal) declare(serviceName string, required *domain.Required) {
	if required == nil {
		return
	}
	p.mu.Lock()
	p.permissions[serviceName] = append(p.permissions[serviceName], required.Permission)
	p.mu.Unlock()
}

// declaredPermissions snapshots the permissions declared so far, deduplicated
// by id per service.
func (p *Portal) declaredPermissions() map[string][]domain.BasePermission {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := make(map[string][]domain.BasePermission, len(p.permissions))
	for service, declared := range p.permissions {
		seen := make(map[string]struct{}, len(declared))
		unique := make([]domain.BasePermission, 0, len(declared))
		for _, permission := range declared {
			if _, ok := seen[permission.ID]; ok {
				continue
			}
			seen[permission.ID] = struct{}{}
			unique = append(unique, permission)
		}
		sort.Slice(unique, func(i, j int) bool { return unique[i].ID < unique[j].ID })
		snapshot[service] = unique
	}
	return snapshot
}

func outcomeLabel(outcome usecase.Outcome) string {
	if outcome.Success {
		return "granted"
	}
	switch outcome.Message {
	case "No auth":
		return "no_auth"
	case "Invalid auth", "Invalid token":
		return "invalid_auth"
	case "Invalid client":
		return "invalid_client"
	case "No permissions":
		return "no_permissions"
	case "2FA Setup required", "OTP required":
		return "2fa_required"
	case "Invalid request":
		return "invalid_request"
	default:
		return "server_error"
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusProxyAuthRequired:
		return "two_factor_required"
	default:
		return "internal_error"
	}
}
