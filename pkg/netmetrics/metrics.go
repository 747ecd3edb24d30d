// Package netmetrics exposes per-connection network health as Prometheus
// gauges, labeled by client id: RTT, jitter, packet loss rate, and tick
// drift (the gap between a peer's local tick and the sync manager's
// target tick).
package netmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gauge vectors a connection updates as it runs.
// Grounded on the custom prometheus.Collector the sockstats/conniver
// exporters build for TCP_INFO stats, simplified to the standard
// GaugeVec pattern since netsync has no raw-socket info struct to poll —
// each connection pushes its own computed values instead of being
// collected from the kernel.
type Metrics struct {
	RTTSeconds     *prometheus.GaugeVec
	JitterSeconds  *prometheus.GaugeVec
	PacketLossRate *prometheus.GaugeVec
	TickDrift      *prometheus.GaugeVec
}

// New registers and returns the connection gauges against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RTTSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "netsync",
			Name:      "rtt_seconds",
			Help:      "Smoothed round-trip time estimate per connection.",
		}, []string{"client_id"}),
		JitterSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "netsync",
			Name:      "jitter_seconds",
			Help:      "Smoothed RTT jitter estimate per connection.",
		}, []string{"client_id"}),
		PacketLossRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "netsync",
			Name:      "packet_loss_rate",
			Help:      "Fraction of sent packets not yet acknowledged within the loss window.",
		}, []string{"client_id"}),
		TickDrift: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "netsync",
			Name:      "tick_drift",
			Help:      "Signed difference between a connection's local tick and its sync target tick.",
		}, []string{"client_id"}),
	}
	reg.MustRegister(m.RTTSeconds, m.JitterSeconds, m.PacketLossRate, m.TickDrift)
	return m
}

// Observe records one sample of a connection's network health.
func (m *Metrics) Observe(clientId string, rtt, jitter time.Duration, lossRate float64, tickDrift int32) {
	m.RTTSeconds.WithLabelValues(clientId).Set(rtt.Seconds())
	m.JitterSeconds.WithLabelValues(clientId).Set(jitter.Seconds())
	m.PacketLossRate.WithLabelValues(clientId).Set(lossRate)
	m.TickDrift.WithLabelValues(clientId).Set(float64(tickDrift))
}

// Forget removes a connection's series once it disconnects, so stale
// client ids don't accumulate in the registry forever.
func (m *Metrics) Forget(clientId string) {
	m.RTTSeconds.DeleteLabelValues(clientId)
	m.JitterSeconds.DeleteLabelValues(clientId)
	m.PacketLossRate.DeleteLabelValues(clientId)
	m.TickDrift.DeleteLabelValues(clientId)
}
