package registry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("eagerpath.registry")

// Metrics for path cache operations.
var (
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
	cacheInserts metric.Int64Counter
	cacheLosses  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		cacheHits, err = meter.Int64Counter(
			"eagerpath_cache_hits_total",
			metric.WithDescription("Path cache lookups answered from the cache"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"eagerpath_cache_misses_total",
			metric.WithDescription("Path cache lookups that walked the expression"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheInserts, err = meter.Int64Counter(
			"eagerpath_cache_inserts_total",
			metric.WithDescription("Entries inserted into the path cache"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheLosses, err = meter.Int64Counter(
			"eagerpath_cache_lost_inserts_total",
			metric.WithDescription("Inserts discarded because an equal entry was already present"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func rootAttr(root string) metric.AddOption {
	return metric.WithAttributes(attribute.String("root", root))
}

func recordHit(ctx context.Context, root string) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheHits.Add(ctx, 1, rootAttr(root))
}

func recordMiss(ctx context.Context, root string) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheMisses.Add(ctx, 1, rootAttr(root))
}

func recordInsert(ctx context.Context, root string, won bool) {
	if err := initMetrics(); err != nil {
		return
	}
	if won {
		cacheInserts.Add(ctx, 1, rootAttr(root))
		return
	}
	cacheLosses.Add(ctx, 1, rootAttr(root))
}
