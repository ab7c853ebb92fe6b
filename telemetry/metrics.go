// Package telemetry provides Prometheus metrics, OpenTelemetry tracing setup,
// and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	ResolvesStarted   prometheus.Counter
	ResolvesSucceeded prometheus.Counter
	ResolvesFailed    prometheus.Counter
	NoLinkFound       prometheus.Counter
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	ShortenCalls      prometheus.Counter
	ShortenFailures   prometheus.Counter
	SlugCollisions    prometheus.Counter

	// Histograms (seconds)
	MetadataFetchDuration prometheus.Observer
	ShortenDuration       prometheus.Observer
	PipelineDuration      prometheus.Observer

	// Gauges
	DegradedGauge prometheus.Gauge // 1 = last resolve served a degraded CDN entry
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ResolvesStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "tiktoker_resolves_started_total", Help: "Number of resolution pipelines started"})
		ResolvesSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "tiktoker_resolves_succeeded_total", Help: "Number of resolution pipelines that produced a short URL"})
		ResolvesFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "tiktoker_resolves_failed_total", Help: "Number of resolution pipelines that failed"})
		NoLinkFound = promauto.NewCounter(prometheus.CounterOpts{Name: "tiktoker_no_link_total", Help: "Number of inputs with no recognizable video link"})
		CacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "tiktoker_shortlink_cache_hits_total", Help: "Shortlink cache hits"})
		CacheMisses = promauto.NewCounter(prometheus.CounterOpts{Name: "tiktoker_shortlink_cache_misses_total", Help: "Shortlink cache misses (expired entries included)"})
		ShortenCalls = promauto.NewCounter(prometheus.CounterOpts{Name: "tiktoker_shorten_calls_total", Help: "Upstream shortening calls issued"})
		ShortenFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "tiktoker_shorten_failures_total", Help: "Upstream shortening calls failed"})
		SlugCollisions = promauto.NewCounter(prometheus.CounterOpts{Name: "tiktoker_slug_collisions_total", Help: "Locally minted slugs rejected for collision"})
		MetadataFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "tiktoker_metadata_fetch_duration_seconds", Help: "Metadata fetch duration seconds", Buckets: prometheus.DefBuckets})
		ShortenDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "tiktoker_shorten_duration_seconds", Help: "Shortening call duration seconds", Buckets: prometheus.DefBuckets})
		PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "tiktoker_pipeline_duration_seconds", Help: "End-to-end pipeline duration seconds", Buckets: prometheus.DefBuckets})
		DegradedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "tiktoker_cdn_degraded", Help: "Last resolve used a degraded CDN fallback (1) or not (0)"})
	})
}

// Inc increments a counter if metrics are initialized.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// UpdateDegradedGauge sets gauge to 1 if degraded else 0.
func UpdateDegradedGauge(degraded bool) {
	if DegradedGauge != nil {
		if degraded {
			DegradedGauge.Set(1)
		} else {
			DegradedGauge.Set(0)
		}
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
