package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector records relay activity for scraping. It
// implements services.Metrics.
type PrometheusCollector struct {
	sessionsActive    prometheus.Gauge
	sessionsTotal     prometheus.Counter
	sessionsRejected  prometheus.Counter
	heartbeatTimeouts prometheus.Counter
	bytesRelayed      prometheus.Counter
}

func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)
	return &PrometheusCollector{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "adstream_sessions_active",
			Help: "Number of currently connected watcher sessions",
		}),

		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "adstream_sessions_total",
			Help: "Total number of watcher sessions accepted",
		}),

		sessionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "adstream_sessions_rejected_total",
			Help: "Total number of watchers turned away at the admission cap",
		}),

		heartbeatTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "adstream_heartbeat_timeouts_total",
			Help: "Total number of sessions evicted for missed heartbeats",
		}),

		bytesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "adstream_relayed_bytes_total",
			Help: "Total amount of encoded media relayed in bytes",
		}),
	}
}

func (p *PrometheusCollector) SessionOpened() {
	p.sessionsActive.Inc()
	p.sessionsTotal.Inc()
}

func (p *PrometheusCollector) SessionClosed() {
	p.sessionsActive.Dec()
}

func (p *PrometheusCollector) SessionRejected() {
	p.sessionsRejected.Inc()
}

func (p *PrometheusCollector) HeartbeatTimeout() {
	p.heartbeatTimeouts.Inc()
}

func (p *PrometheusCollector) BytesRelayed(n int) {
	p.bytesRelayed.Add(float64(n))
}
