// Package glossymetrics exports Glossy flood statistics as Prometheus
// metrics.
package glossymetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ystepanoff/glossy/internal/glossy"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "glossyd"
	subsystem = "flood"
)

// Label names for flood metrics.
const (
	labelFlood = "flood"
	labelRole  = "role" // "initiator" or "relay"
)

// -------------------------------------------------------------------------
// Collector — Prometheus Flood Metrics
// -------------------------------------------------------------------------

// Collector holds all Glossy Prometheus metrics.
//
// Metrics are designed for low-power deployment monitoring:
//   - Active gauges track floods currently in progress.
//   - Reception/relay counters track per-node participation.
//   - Rate gauges surface the derived PER/FSR figures from
//     internal/glossy.Snapshot without requiring a scrape-time division.
type Collector struct {
	// Active tracks the number of currently active floods, labeled by name.
	Active *prometheus.GaugeVec

	// PacketsReceived counts receptions that started (preamble and sync
	// detected), labeled by flood name.
	PacketsReceived *prometheus.CounterVec

	// PacketsReceivedOK counts frames that additionally passed CRC.
	PacketsReceivedOK *prometheus.CounterVec

	// Errors counts RX failures, CRC failures and driver errors.
	Errors *prometheus.CounterVec

	// Retransmissions counts frames this node relayed, labeled by role.
	Retransmissions *prometheus.CounterVec

	// PacketErrorRate reports the current packet error rate in [0,1],
	// derived from Snapshot.PER.
	PacketErrorRate *prometheus.GaugeVec

	// FloodSuccessRate reports the current flood success rate in [0,1],
	// derived from Snapshot.FSR.
	FloodSuccessRate *prometheus.GaugeVec

	// LastFloodDurationTicks reports the duration of the most recently
	// completed flood in high-frequency ticks.
	LastFloodDurationTicks *prometheus.GaugeVec

	// LastRelayCnt reports the hop count of the most recently received
	// frame.
	LastRelayCnt *prometheus.GaugeVec

	// LastSNR reports the signal-to-noise ratio of the most recently
	// observed flood (average RSSI of its receptions minus the noise
	// floor), in dB.
	LastSNR *prometheus.GaugeVec
}

// NewCollector creates a Collector with all flood metrics registered
// against the provided prometheus.Registerer. If reg is nil,
// prometheus.DefaultRegisterer is used.
//
// All metrics are created with the "glossyd_flood_" prefix
// (namespace_subsystem) to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Active,
		c.PacketsReceived,
		c.PacketsReceivedOK,
		c.Errors,
		c.Retransmissions,
		c.PacketErrorRate,
		c.FloodSuccessRate,
		c.LastFloodDurationTicks,
		c.LastRelayCnt,
		c.LastSNR,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	floodLabels := []string{labelFlood}
	roleLabels := []string{labelFlood, labelRole}

	return &Collector{
		Active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active",
			Help:      "Whether a flood is currently in progress (1) or not (0).",
		}, floodLabels),

		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_received_total",
			Help:      "Total receptions started (preamble and sync detected), regardless of outcome.",
		}, floodLabels),

		PacketsReceivedOK: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_received_ok_total",
			Help:      "Total frames that passed CRC.",
		}, floodLabels),

		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total header/CRC reception failures plus driver-reported errors.",
		}, floodLabels),

		Retransmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "retransmissions_total",
			Help:      "Total frames transmitted by this node during a flood.",
		}, roleLabels),

		PacketErrorRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packet_error_rate",
			Help:      "Fraction of received frames that failed CRC, in [0,1].",
		}, floodLabels),

		FloodSuccessRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "flood_success_rate",
			Help:      "Fraction of observed floods with at least one successful reception, in [0,1].",
		}, floodLabels),

		LastFloodDurationTicks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_duration_ticks",
			Help:      "Duration of the most recently completed flood, in high-frequency ticks.",
		}, floodLabels),

		LastRelayCnt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_relay_count",
			Help:      "Hop count of the most recently received frame.",
		}, floodLabels),

		LastSNR: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_snr_db",
			Help:      "Signal-to-noise ratio of the most recently observed flood (average RSSI minus noise floor), in dB.",
		}, floodLabels),
	}
}

// -------------------------------------------------------------------------
// Flood Lifecycle
// -------------------------------------------------------------------------

// SetActive records whether a flood is currently in progress.
func (c *Collector) SetActive(flood string, active bool) {
	v := 0.0
	if active {
		v = 1.0
	}
	c.Active.WithLabelValues(flood).Set(v)
}

// -------------------------------------------------------------------------
// Snapshot Ingestion
// -------------------------------------------------------------------------

// Observe records the counters and derived rates from a controller
// snapshot taken after Stop. txCnt is the number of frames this node
// transmitted during the flood (glossy.Controller.GetTxCnt), tracked
// separately since Stats accumulates lifetime RX counters but not TX ones.
// Call once per completed flood.
func (c *Collector) Observe(flood, role string, snap glossy.Snapshot, txCnt int) {
	c.PacketsReceived.WithLabelValues(flood).Add(float64(snap.PktCnt))
	c.PacketsReceivedOK.WithLabelValues(flood).Add(float64(snap.PktCntCRCOK))
	c.Errors.WithLabelValues(flood).Add(float64(snap.ErrCnt) + float64(snap.NRxFail))
	c.Retransmissions.WithLabelValues(flood, role).Add(float64(txCnt))

	c.PacketErrorRate.WithLabelValues(flood).Set(float64(snap.PER) / 10000)
	c.FloodSuccessRate.WithLabelValues(flood).Set(float64(snap.FSR) / 10000)
	c.LastFloodDurationTicks.WithLabelValues(flood).Set(float64(snap.FloodDuration))
	c.LastRelayCnt.WithLabelValues(flood).Set(float64(snap.RelayCnt))
	c.LastSNR.WithLabelValues(flood).Set(float64(snap.SNR))
}
