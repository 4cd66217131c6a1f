package relayergame

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "relayer_game"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of open games.
	OpenGames metrics.Gauge
	// Proposals submitted or extended.
	Proposals metrics.Counter
	// Rounds opened after a contested close.
	Rounds metrics.Counter
	// Closed games, labelled by outcome.
	Outcomes metrics.Counter
	// Total bond burned.
	Slashed metrics.Counter
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
		OpenGames: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "open_games",
			Help:      "Number of open games.",
		}, labels).With(labelsAndValues...),
		Proposals: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "proposals",
			Help:      "Number of bonded proposals taken.",
		}, labels).With(labelsAndValues...),
		Rounds: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "rounds",
			Help:      "Number of additional rounds opened.",
		}, labels).With(labelsAndValues...),
		Outcomes: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "outcomes",
			Help:      "Number of closed games, by outcome.",
		}, append(labels, "outcome")).With(labelsAndValues...),
		Slashed: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "slashed",
			Help:      "Total bond burned.",
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		OpenGames: discard.NewGauge(),
		Proposals: discard.NewCounter(),
		Rounds:    discard.NewCounter(),
		Outcomes:  discard.NewCounter(),
		Slashed:   discard.NewCounter(),
	}
}
