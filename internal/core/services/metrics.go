package services

// Metrics receives counters from the session registry and relay loops.
// The Prometheus collector in internal/infrastructure/monitoring
// implements it; tests and metric-less deployments use NopMetrics.
type Metrics interface {
	SessionOpened()
	SessionClosed()
	SessionRejected()
	HeartbeatTimeout()
	BytesRelayed(n int)
}

type nopMetrics struct{}

func (nopMetrics) SessionOpened()     {}
func (nopMetrics) SessionClosed()     {}
func (nopMetrics) SessionRejected()   {}
func (nopMetrics) HeartbeatTimeout()  {}
func (nopMetrics) BytesRelayed(int)   {}

// NopMetrics returns a Metrics sink that discards everything.
func NopMetrics() Metrics { return nopMetrics{} }
