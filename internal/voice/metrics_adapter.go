package voice

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics adapts a set of Prometheus collectors to
// SessionMetrics. The caller supplies collectors already registered
// against the process registry (see internal/observability) so the
// voice package never imports that package directly.
type PrometheusMetrics struct {
	Peers           *prometheus.GaugeVec
	ICERestarts     prometheus.Counter
	Glare           prometheus.Counter
	TrackClassifyMs prometheus.Histogram
	RTTMs           *prometheus.HistogramVec

	ChannelID string
}

func (m *PrometheusMetrics) SetPeerCount(n int) {
	if m.Peers != nil {
		m.Peers.WithLabelValues(m.ChannelID).Set(float64(n))
	}
}

func (m *PrometheusMetrics) IncICERestart() {
	if m.ICERestarts != nil {
		m.ICERestarts.Inc()
	}
}

func (m *PrometheusMetrics) IncGlare() {
	if m.Glare != nil {
		m.Glare.Inc()
	}
}

func (m *PrometheusMetrics) ObserveTrackClassifyMillis(ms float64) {
	if m.TrackClassifyMs != nil {
		m.TrackClassifyMs.Observe(ms)
	}
}

func (m *PrometheusMetrics) ObserveRTTMillis(peerID string, ms float64) {
	if m.RTTMs != nil {
		m.RTTMs.WithLabelValues(peerID).Observe(ms)
	}
}
