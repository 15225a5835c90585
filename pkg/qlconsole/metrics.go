package qlconsole

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
)

const metricsNamespace = "qlconsole"

// Metrics exports engine and roster metrics to Prometheus. It is a Sink and
// is attached to the projector by WithMetrics.
type Metrics struct {
	blocks     *prometheus.CounterVec
	deltas     *prometheus.CounterVec
	players    prometheus.Gauge
	pending    prometheus.Gauge
	generation prometheus.Gauge
}

// NewMetrics registers the metrics with reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		blocks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      "blocks_total",
			Help:      "Counts classified console blocks per kind",
		}, []string{"kind"}),
		deltas: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "projector",
			Name:      "deltas_total",
			Help:      "Counts accepted roster mutations per cause",
		}, []string{"cause"}),
		players: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "projector",
			Name:      "players",
			Help:      "Number of players with a known slot",
		}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "projector",
			Name:      "pending_players",
			Help:      "Number of connected players whose slot is not known yet",
		}),
		generation: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "projector",
			Name:      "generation",
			Help:      "Generation of the current roster snapshot",
		}),
	}
}

// ObserveResult counts one classified block.
func (m *Metrics) ObserveResult(res event.Result) {
	m.blocks.WithLabelValues(res.Kind.String()).Inc()
}

// Publish implements Sink.
func (m *Metrics) Publish(d RosterDelta) {
	m.deltas.WithLabelValues(d.Cause.String()).Inc()
	m.players.Set(float64(len(d.Current.Players)))
	m.pending.Set(float64(len(d.Current.Pending)))
	m.generation.Set(float64(d.Generation))
}
