// Package metrics records crawl progress as Prometheus metrics and keeps
// per real estate sync statistics in Redis.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	// MetricsNamespace is the namespace for all crawler metrics.
	MetricsNamespace = "metasys"

	// MetricsSubsystem is the subsystem for pipeline metrics.
	MetricsSubsystem = "crawler"
)

// Stage names used as label values.
const (
	StageDiscover  = "discover"
	StageEnrich    = "enrich"
	StagePublish   = "publish"
	StageReference = "reference"
)

// Pipeline holds the counters of one process. A nil *Pipeline is valid and records nothing.
type Pipeline struct {
	registry *prometheus.Registry

	PagesFetched     *prometheus.CounterVec
	EntitiesSeen     *prometheus.CounterVec
	EntitiesInserted *prometheus.CounterVec
	Enrichments      *prometheus.CounterVec
	Published        *prometheus.CounterVec
	ReferenceStored  prometheus.Counter
	StageDuration    *prometheus.HistogramVec
	LastSuccess      *prometheus.GaugeVec
}

// NewPipeline creates and registers the pipeline metrics on a private registry.
func NewPipeline() *Pipeline {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Pipeline{
		registry: reg,
		PagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace, Subsystem: MetricsSubsystem,
			Name: "pages_fetched_total",
			Help: "Listing pages fetched from the source API",
		}, []string{"kind"}),
		EntitiesSeen: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace, Subsystem: MetricsSubsystem,
			Name: "entities_seen_total",
			Help: "Listing items seen during discovery",
		}, []string{"kind"}),
		EntitiesInserted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace, Subsystem: MetricsSubsystem,
			Name: "entities_discovered_total",
			Help: "Entities inserted for the first time",
		}, []string{"kind"}),
		Enrichments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace, Subsystem: MetricsSubsystem,
			Name: "enrichments_total",
			Help: "Deep fetch attempts by outcome",
		}, []string{"kind", "outcome"}),
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace, Subsystem: MetricsSubsystem,
			Name: "records_total",
			Help: "Publish decisions by outcome",
		}, []string{"outcome"}),
		ReferenceStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace, Subsystem: MetricsSubsystem,
			Name: "reference_entries_stored_total",
			Help: "Enumeration members upserted",
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace, Subsystem: MetricsSubsystem,
			Name:    "stage_duration_seconds",
			Help:    "Wall time of each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16), // 1s to ~9h
		}, []string{"stage"}),
		LastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace, Subsystem: MetricsSubsystem,
			Name: "last_success_timestamp_seconds",
			Help: "Unix time of the last successful stage completion",
		}, []string{"stage"}),
	}
}

// Registry exposes the registry for promhttp and pushing.
func (p *Pipeline) Registry() *prometheus.Registry {
	if p == nil {
		return nil
	}
	return p.registry
}

// PageFetched counts one listing page and the items on it.
func (p *Pipeline) PageFetched(kind string, items int) {
	if p == nil {
		return
	}
	p.PagesFetched.WithLabelValues(kind).Inc()
	p.EntitiesSeen.WithLabelValues(kind).Add(float64(items))
}

// Inserted counts newly discovered entities.
func (p *Pipeline) Inserted(kind string, n int) {
	if p == nil || n == 0 {
		return
	}
	p.EntitiesInserted.WithLabelValues(kind).Add(float64(n))
}

// Enriched counts one deep fetch outcome.
func (p *Pipeline) Enriched(kind string, ok bool) {
	if p == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	p.Enrichments.WithLabelValues(kind, outcome).Inc()
}

// Record counts a publish decision: published, skipped or error.
func (p *Pipeline) Record(outcome string) {
	if p == nil {
		return
	}
	p.Published.WithLabelValues(outcome).Inc()
}

// Reference counts one stored enumeration member.
func (p *Pipeline) Reference() {
	if p == nil {
		return
	}
	p.ReferenceStored.Inc()
}

// StageDone observes a completed stage.
func (p *Pipeline) StageDone(stage string, started time.Time, err error) {
	if p == nil {
		return
	}
	p.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
	if err == nil {
		p.LastSuccess.WithLabelValues(stage).SetToCurrentTime()
	}
}

// Push sends the current values to a Prometheus Pushgateway. Used by one-shot
// commands, which exit before anything could scrape them.
func (p *Pipeline) Push(ctx context.Context, gatewayURL, job string) error {
	if p == nil || gatewayURL == "" {
		return nil
	}
	if err := push.New(gatewayURL, job).Gatherer(p.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
