package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level gateway metrics (not bridge-specific)
type Metrics struct {
	// Channel metrics
	ChannelsActive  prometheus.Gauge
	ChannelsCreated prometheus.Counter
	ChannelsDropped prometheus.Counter
	ChannelFailures *prometheus.CounterVec

	// Loop metrics
	ForwardsTotal   *prometheus.CounterVec
	ForwardErrors   *prometheus.CounterVec
	ForwardDuration prometheus.Histogram
	DiscoveryEvents *prometheus.CounterVec

	// Terminal pool metrics
	PoolSlotsInUse *prometheus.GaugeVec

	// Bus metrics
	BusConnected  prometheus.Gauge
	BusReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ChannelsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "streambridge",
				Subsystem: "gateway",
				Name:      "channels_active",
				Help:      "Number of channels currently held by the registry",
			},
		),

		ChannelsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "streambridge",
				Subsystem: "gateway",
				Name:      "channels_created_total",
				Help:      "Total number of channels successfully created",
			},
		),

		ChannelsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "streambridge",
				Subsystem: "gateway",
				Name:      "channels_dropped_total",
				Help:      "Total number of channels discarded from the registry",
			},
		),

		ChannelFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streambridge",
				Subsystem: "gateway",
				Name:      "channel_failures_total",
				Help:      "Total number of failed channel operations",
			},
			[]string{"operation", "reason"},
		),

		ForwardsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streambridge",
				Subsystem: "forwarding",
				Name:      "forwards_total",
				Help:      "Total number of per-channel forward invocations",
			},
			[]string{"service"},
		),

		ForwardErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streambridge",
				Subsystem: "forwarding",
				Name:      "errors_total",
				Help:      "Total number of forward invocations that reported an error",
			},
			[]string{"service"},
		),

		ForwardDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "streambridge",
				Subsystem: "forwarding",
				Name:      "tick_duration_seconds",
				Help:      "Duration of one full forwarding pass over the registry",
				Buckets:   prometheus.DefBuckets,
			},
		),

		DiscoveryEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streambridge",
				Subsystem: "discovery",
				Name:      "events_total",
				Help:      "Total number of discovery events consumed from the bus",
			},
			[]string{"type"},
		),

		PoolSlotsInUse: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "streambridge",
				Subsystem: "pool",
				Name:      "slots_in_use",
				Help:      "Terminal pool slots currently occupied",
			},
			[]string{"side"},
		),

		BusConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "streambridge",
				Subsystem: "bus",
				Name:      "connected",
				Help:      "Whether the local bus connection is established (0/1)",
			},
		),

		BusReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "streambridge",
				Subsystem: "bus",
				Name:      "reconnects_total",
				Help:      "Total number of local bus reconnections",
			},
		),
	}
}

// collectors returns every core collector for bulk registration
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ChannelsActive,
		m.ChannelsCreated,
		m.ChannelsDropped,
		m.ChannelFailures,
		m.ForwardsTotal,
		m.ForwardErrors,
		m.ForwardDuration,
		m.DiscoveryEvents,
		m.PoolSlotsInUse,
		m.BusConnected,
		m.BusReconnects,
	}
}
