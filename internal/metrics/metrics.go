package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the supervisor's prometheus metrics on a dedicated
// registry, exposed through Handler on the status server.
type Metrics struct {
	registry *prometheus.Registry

	streamsTracked prometheus.Gauge
	streamUp       *prometheus.GaugeVec
	restartsTotal  *prometheus.CounterVec
	exhaustedTotal prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		streamsTracked: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relayd_streams_tracked",
			Help: "Number of streams tracked by the supervisor",
		}),

		streamUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relayd_stream_up",
			Help: "Whether the relay process for a stream is running",
		}, []string{"stream"}),

		restartsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relayd_stream_restarts_total",
			Help: "Total number of relay restart attempts per stream",
		}, []string{"stream"}),

		exhaustedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "relayd_streams_exhausted_total",
			Help: "Number of streams that reached their restart ceiling",
		}),
	}
}

func (m *Metrics) SetTracked(n int) {
	m.streamsTracked.Set(float64(n))
}

func (m *Metrics) SetStreamUp(stream string, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	m.streamUp.WithLabelValues(stream).Set(v)
}

func (m *Metrics) ObserveRestart(stream string) {
	m.restartsTotal.WithLabelValues(stream).Inc()
}

func (m *Metrics) ObserveExhausted() {
	m.exhaustedTotal.Inc()
}

// Handler returns the http handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
