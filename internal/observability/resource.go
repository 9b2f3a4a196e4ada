package observability

import (
	"context"

	"github.com/budgetwise/backend/internal/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
)

// serviceResource describes this process to the OTLP exporters. Traces,
// metrics and logs must carry the same service.name or cross-signal
// correlation in Grafana breaks.
func serviceResource(ctx context.Context, cfg *config.Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
}
