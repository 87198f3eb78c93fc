// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/betterportal/gateway/internal/auth/usecase"
	"github.com/betterportal/gateway/internal/capability"
	"github.com/betterportal/gateway/internal/config"
	"github.com/betterportal/gateway/internal/http"
	"github.com/betterportal/gateway/internal/metrics"
	"github.com/betterportal/gateway/internal/portal"
	"github.com/betterportal/gateway/internal/token"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	metricsProvider *metrics.Provider
	gatewayMetrics  metrics.GatewayMetrics

	// Collaborators
	verifier   token.Verifier
	registry   *capability.Registry
	authorizer *usecase.Authorizer

	// Servers and public surface
	httpServer    *http.Server
	metricsServer *http.MetricsServer
	portal        *portal.Portal

	// Initialization flags and mutex for thread-safety
	mu                  sync.Mutex
	loggerInit          sync.Once
	metricsProviderInit sync.Once
	gatewayMetricsInit  sync.Once
	verifierInit        sync.Once
	registryInit        sync.Once
	authorizerInit      sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once
	portalInit          sync.Once
	initErrors          map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = err
			return
		}
		c.metricsProvider = provider
	})
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// GatewayMetrics returns the gateway metric recorder, no-op when metrics are disabled.
func (c *Container) GatewayMetrics() (metrics.GatewayMetrics, error) {
	c.gatewayMetricsInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["gatewayMetrics"] = err
			return
		}
		if provider == nil {
			c.gatewayMetrics = metrics.NewNoOpGatewayMetrics()
			return
		}
		gateway, err := metrics.NewGatewayMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["gatewayMetrics"] = err
			return
		}
		c.gatewayMetrics = gateway
	})
	if storedErr, exists := c.initErrors["gatewayMetrics"]; exists {
		return nil, storedErr
	}
	return c.gatewayMetrics, nil
}

// Verifier returns the remote key set backed token verifier.
func (c *Container) Verifier() token.Verifier {
	c.verifierInit.Do(func() {
		c.verifier = token.NewJWKSVerifier(
			c.config.JWKSURL,
			c.config.JWTIssuer,
			c.config.JWKSTimeout,
			c.Logger(),
		)
	})
	return c.verifier
}

// Registry returns the capability registry.
func (c *Container) Registry() *capability.Registry {
	c.registryInit.Do(func() {
		c.registry = capability.NewRegistry(c.Logger())
	})
	return c.registry
}

// Authorizer returns the authorization gate.
func (c *Container) Authorizer() *usecase.Authorizer {
	c.authorizerInit.Do(func() {
		c.authorizer = usecase.NewAuthorizer(c.Verifier(), c.Logger())
	})
	return c.authorizer
}

// HTTPServer returns the HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	c.httpServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		if provider != nil {
			c.httpServer = http.NewServer(c.config, c.Logger(), provider.MeterProvider())
		} else {
			c.httpServer = http.NewServer(c.config, c.Logger(), nil)
		}
	})
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// Portal returns the portal surface mounted on the HTTP server's router,
// with the UI bundle mounted when one is configured.
func (c *Container) Portal() (*portal.Portal, error) {
	c.portalInit.Do(func() {
		server, err := c.HTTPServer()
		if err != nil {
			c.initErrors["portal"] = err
			return
		}
		gateway, err := c.GatewayMetrics()
		if err != nil {
			c.initErrors["portal"] = err
			return
		}

		p := portal.New(
			server.Router(),
			c.Authorizer(),
			c.Registry(),
			gateway,
			c.Logger(),
			c.config.CacheEnabled,
		)
		if c.config.BPUIBasePath != "" {
			if err := p.InitBPUI("betterportal", c.config.BPUIBasePath); err != nil {
				c.initErrors["portal"] = fmt.Errorf("failed to mount ui bundle: %w", err)
				return
			}
		}
		c.portal = p
	})
	if storedErr, exists := c.initErrors["portal"]; exists {
		return nil, storedErr
	}
	return c.portal, nil
}

// MetricsServer returns the metrics HTTP server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = err
			return
		}
		if provider == nil {
			return
		}
		c.metricsServer = http.NewMetricsServer(
			c.config.ServerHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
		)
	})
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}
