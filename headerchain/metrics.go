package headerchain

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "header_chain"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of the best header.
	BestNumber metrics.Gauge
	// Headers accepted into the store.
	Accepted metrics.Counter
	// Headers rejected, labelled by reason.
	Rejected metrics.Counter
	// Canonical index reorganisations.
	Reorgs metrics.Counter
	// Canonical entries rewritten by each reorganisation.
	ReorgDepth metrics.Histogram
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		BestNumber: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "best_number",
			Help:      "Number of the best foreign header.",
		}, labels).With(labelsAndValues...),
		Accepted: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "accepted_headers",
			Help:      "Number of foreign headers accepted.",
		}, labels).With(labelsAndValues...),
		Rejected: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "rejected_headers",
			Help:      "Number of foreign headers rejected, by reason.",
		}, append(labels, "reason")).With(labelsAndValues...),
		Reorgs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "reorgs",
			Help:      "Number of canonical chain reorganisations.",
		}, labels).With(labelsAndValues...),
		ReorgDepth: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "reorg_depth",
			Help:      "Canonical entries rewritten per reorganisation.",
			Buckets:   stdprometheus.ExponentialBuckets(1, 2, 10),
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		BestNumber: discard.NewGauge(),
		Accepted:   discard.NewCounter(),
		Rejected:   discard.NewCounter(),
		Reorgs:     discard.NewCounter(),
		ReorgDepth: discard.NewHistogram(),
	}
}
