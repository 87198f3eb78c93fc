package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GatewayMetrics defines the interface for recording gateway operation metrics.
// Implementations track authorization decisions, capability dispatches and
// static asset cache behavior.
type GatewayMetrics interface {
	// RecordAuthDecision records one authorization gate outcome.
	// Service examples: "billing", "tickets"
	// Outcome examples: "granted", "no_auth", "invalid_auth", "no_permissions",
	// "invalid_client", "2fa_required", "server_error"
	RecordAuthDecision(ctx context.Context, service, outcome string)

	// RecordCapabilityDispatch records one capability dispatch call with the
	// number of candidate registrations that contributed a result.
	RecordCapabilityDispatch(ctx context.Context, kind string, candidates int)

	// RecordAssetResponse records one static asset response by subtree and
	// result class ("hit" for 304, "miss" for 200, "redirect", "not_found").
	RecordAssetResponse(ctx context.Context, subtree, result string)
}

// gatewayMetrics implements GatewayMetrics using OpenTelemetry metrics.
type gatewayMetrics struct {
	authCounter     metric.Int64Counter
	dispatchCounter metric.Int64Counter
	assetCounter    metric.Int64Counter
}

// NewGatewayMetrics creates a GatewayMetrics implementation using the provided meter provider.
// The namespace parameter is used as a prefix for all metric names (e.g., "portal").
// Returns error if meters cannot be initialized.
func NewGatewayMetrics(meterProvider metric.MeterProvider, namespace string) (GatewayMetrics, error) {
	meter := meterProvider.Meter(namespace)

	authCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_auth_decisions_total", namespace),
		metric.WithDescription("Total number of authorization gate decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth decision counter: %w", err)
	}

	dispatchCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_capability_dispatches_total", namespace),
		metric.WithDescription("Total number of capability dispatch calls"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create capability dispatch counter: %w", err)
	}

	assetCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_asset_responses_total", namespace),
		metric.WithDescription("Total number of static asset responses"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create asset response counter: %w", err)
	}

	return &gatewayMetrics{
		authCounter:     authCounter,
		dispatchCounter: dispatchCounter,
		assetCounter:    assetCounter,
	}, nil
}

// RecordAuthDecision increments the decision counter with service and outcome labels.
func (g *gatewayMetrics) RecordAuthDecision(ctx context.Context, service, outcome string) {
	g.authCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("service", service),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordCapabilityDispatch increments the dispatch counter with kind and candidate-count labels.
func (g *gatewayMetrics) RecordCapabilityDispatch(ctx context.Context, kind string, candidates int) {
	g.dispatchCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.Int("candidates", candidates),
		),
	)
}

// RecordAssetResponse increments the asset counter with subtree and result labels.
func (g *gatewayMetrics) RecordAssetResponse(ctx context.Context, subtree, result string) {
	g.assetCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("subtree", subtree),
			attribute.String("result", result),
		),
	)
}

// NoOpGatewayMetrics is a no-op implementation of GatewayMetrics for when metrics are disabled.
type NoOpGatewayMetrics struct{}

// NewNoOpGatewayMetrics creates a no-op GatewayMetrics implementation.
func NewNoOpGatewayMetrics() GatewayMetrics {
	return &NoOpGatewayMetrics{}
}

// RecordAuthDecision does nothing when metrics are disabled.
func (n *NoOpGatewayMetrics) RecordAuthDecision(ctx context.Context, service, outcome string) {
	// No-op
}

// RecordCapabilityDispatch does nothing when metrics are disabled.
func (n *NoOpGatewayMetrics) RecordCapabilityDispatch(ctx context.Context, kind string, candidates int) {
	// No-op
}

// RecordAssetResponse does nothing when metrics are disabled.
func (n *NoOpGatewayMetrics) RecordAssetResponse(ctx context.Context, subtree, result string) {
	// No-op
}
