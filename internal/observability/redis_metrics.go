package observability

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var redisHookOnce sync.Once

// InstrumentRedisClient hooks command and pool metrics into the client.
// Redis here only backs the rate limiter, so the useful signals are command
// latency, error rate and pool saturation. Safe to call more than once; the
// hook is installed once per process.
func InstrumentRedisClient(client redis.UniversalClient, logger *slog.Logger) {
	if client == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	redisHookOnce.Do(func() {
		hook, err := newRedisHook(client)
		if err != nil {
			logger.Warn("redis instrumentation disabled", "error", err)
			return
		}
		client.AddHook(hook)
		logger.Info("redis instrumentation enabled")
	})
}

type redisHook struct {
	cmdTotal   metric.Int64Counter
	cmdErrors  metric.Int64Counter
	cmdLatency metric.Float64Histogram

	totalSeen atomic.Int64
	errsSeen  atomic.Int64

	poolStats func() *redis.PoolStats
}

func newRedisHook(client redis.UniversalClient) (*redisHook, error) {
	meter := otel.Meter("budgetwise-backend")

	cmdTotal, err := meter.Int64Counter(
		"redis.command.total",
		metric.WithDescription("Redis commands executed"),
	)
	if err != nil {
		return nil, err
	}
	cmdErrors, err := meter.Int64Counter(
		"redis.command.errors",
		metric.WithDescription("Redis command failures"),
	)
	if err != nil {
		return nil, err
	}
	cmdLatency, err := meter.Float64Histogram(
		"redis.command.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Redis command latency in seconds"),
	)
	if err != nil {
		return nil, err
	}
	poolSaturation, err := meter.Float64ObservableGauge(
		"redis.pool.saturation",
		metric.WithUnit("1"),
		metric.WithDescription("Redis pool saturation ratio (used_conns / total_conns)"),
	)
	if err != nil {
		return nil, err
	}
	errorRate, err := meter.Float64ObservableGauge(
		"redis.command.error_rate",
		metric.WithUnit("1"),
		metric.WithDescription("Redis command error rate (errors / total commands)"),
	)
	if err != nil {
		return nil, err
	}

	hook := &redisHook{
		cmdTotal:   cmdTotal,
		cmdErrors:  cmdErrors,
		cmdLatency: cmdLatency,
		poolStats:  client.PoolStats,
	}

	_, err = meter.RegisterCallback(func(ctx context.Context, observer metric.Observer) error {
		if stats := hook.poolStats(); stats != nil && stats.TotalConns > 0 {
			used := stats.TotalConns - stats.IdleConns
			observer.ObserveFloat64(poolSaturation, clampRatio(float64(used)/float64(stats.TotalConns)))
		}
		if total := hook.totalSeen.Load(); total > 0 {
			observer.ObserveFloat64(errorRate, clampRatio(float64(hook.errsSeen.Load())/float64(total)))
		}
		return nil
	}, poolSaturation, errorRate)
	if err != nil {
		return nil, err
	}

	return hook, nil
}

func (h *redisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *redisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.record(ctx, cmd.Name(), err, time.Since(start))
		return err
	}
}

func (h *redisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		elapsed := time.Since(start)

		h.cmdLatency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
			attribute.String("command", "pipeline"),
			attribute.String("status", redisCommandStatus(err)),
		))
		for _, cmd := range cmds {
			h.record(ctx, cmd.Name(), cmd.Err(), 0)
		}
		return err
	}
}

func (h *redisHook) record(ctx context.Context, name string, err error, elapsed time.Duration) {
	command := strings.ToLower(name)
	status := redisCommandStatus(err)

	h.totalSeen.Add(1)
	h.cmdTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("status", status),
	))
	if err != nil && err != redis.Nil {
		h.errsSeen.Add(1)
		h.cmdErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("command", command),
			attribute.String("error_type", classifyRedisError(err)),
		))
	}
	if elapsed > 0 {
		h.cmdLatency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
			attribute.String("command", command),
			attribute.String("status", status),
		))
	}
}

func redisCommandStatus(err error) string {
	switch err {
	case nil:
		return "success"
	case redis.Nil:
		return "miss"
	default:
		return "error"
	}
}

func classifyRedisError(err error) string {
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "connection"):
		return "connection"
	default:
		return "other"
	}
}

func clampRatio(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
