package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/budgetwise/backend/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
)

type AppMetrics struct {
	authLoginCounter             metric.Int64Counter
	otpIssuedCounter             metric.Int64Counter
	otpVerificationCounter       metric.Int64Counter
	mailDispatchCounter          metric.Int64Counter
	tokenValidationCounter       metric.Int64Counter
	middlewareValidationCounter  metric.Int64Counter
	rateLimitDecisionCounter     metric.Int64Counter
	subscriptionUpgradeCounter   metric.Int64Counter
	authReqDuration              metric.Float64Histogram
	healthCheckResultCounter     metric.Int64Counter
	healthCheckDuration          metric.Float64Histogram
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := serviceResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "auth.request.duration"},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
				},
			},
		)),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("budgetwise-backend")
	loginCounter, err := meter.Int64Counter("auth.login.attempts")
	if err != nil {
		return nil, err
	}
	otpIssuedCounter, err := meter.Int64Counter("auth.otp.issued")
	if err != nil {
		return nil, err
	}
	otpVerificationCounter, err := meter.Int64Counter("auth.otp.verifications")
	if err != nil {
		return nil, err
	}
	mailDispatchCounter, err := meter.Int64Counter("mail.otp.dispatches")
	if err != nil {
		return nil, err
	}
	tokenValidationCounter, err := meter.Int64Counter("auth.token.validation.events")
	if err != nil {
		return nil, err
	}
	middlewareValidationCounter, err := meter.Int64Counter("http.middleware.validation.events")
	if err != nil {
		return nil, err
	}
	rateLimitDecisionCounter, err := meter.Int64Counter("http.rate_limit.decisions")
	if err != nil {
		return nil, err
	}
	subscriptionUpgradeCounter, err := meter.Int64Counter("subscription.upgrades")
	if err != nil {
		return nil, err
	}
	authReqDuration, err := meter.Float64Histogram("auth.request.duration", metric.WithUnit("s"), metric.WithDescription("Duration of auth endpoint requests in seconds"))
	if err != nil {
		return nil, err
	}
	healthCheckResultCounter, err := meter.Int64Counter("health.check.results")
	if err != nil {
		return nil, err
	}
	healthCheckDuration, err := meter.Float64Histogram(
		"health.check.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of health dependency checks in seconds"),
	)
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		authLoginCounter:            loginCounter,
		otpIssuedCounter:            otpIssuedCounter,
		otpVerificationCounter:      otpVerificationCounter,
		mailDispatchCounter:         mailDispatchCounter,
		tokenValidationCounter:      tokenValidationCounter,
		middlewareValidationCounter: middlewareValidationCounter,
		rateLimitDecisionCounter:    rateLimitDecisionCounter,
		subscriptionUpgradeCounter:  subscriptionUpgradeCounter,
		authReqDuration:             authReqDuration,
		healthCheckResultCounter:    healthCheckResultCounter,
		healthCheckDuration:         healthCheckDuration,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func RecordAuthLogin(ctx context.Context, provider, status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

func RecordOTPIssued(ctx context.Context, purpose string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.otpIssuedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("purpose", purpose),
	))
}

func RecordOTPVerification(ctx context.Context, purpose, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.otpVerificationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("purpose", purpose),
		attribute.String("outcome", outcome),
	))
}

func RecordMailDispatch(ctx context.Context, purpose, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.mailDispatchCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("purpose", purpose),
		attribute.String("outcome", outcome),
	))
}

func RecordTokenValidation(ctx context.Context, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.tokenValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func RecordMiddlewareValidationEvent(ctx context.Context, middlewareName, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.middlewareValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("middleware", middlewareName),
		attribute.String("outcome", outcome),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.rateLimitDecisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	))
}

func RecordSubscriptionUpgrade(ctx context.Context, plan, status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.subscriptionUpgradeCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("plan", plan),
		attribute.String("status", status),
	))
}

func RecordHealthCheckResult(ctx context.Context, dependency, status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.healthCheckResultCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dependency", dependency),
		attribute.String("status", status),
	))
}

func RecordHealthCheckDuration(ctx context.Context, dependency string, duration time.Duration) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.healthCheckDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("dependency", dependency),
	))
}

func RecordAuthRequestDuration(ctx context.Context, endpoint, status string, duration time.Duration) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.authReqDuration.Record(
		ctx,
		duration.Seconds(),
		metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("status", status),
		),
	)
}
