package gateway

import (
	"time"

	"github.com/c360/streambridge/metric"
	"github.com/c360/streambridge/types"
)

// gatewayMetrics is a nil-tolerant recorder over the core platform
// metrics. A gateway constructed without metrics pays only a nil check on
// the hot path.
type gatewayMetrics struct {
	core *metric.Metrics
}

func newGatewayMetrics(core *metric.Metrics) *gatewayMetrics {
	return &gatewayMetrics{core: core}
}

func (m *gatewayMetrics) channelAdded(active, localInUse, externalInUse int) {
	if m.core == nil {
		return
	}
	m.core.ChannelsCreated.Inc()
	m.core.ChannelsActive.Set(float64(active))
	m.core.PoolSlotsInUse.WithLabelValues("local").Set(float64(localInUse))
	m.core.PoolSlotsInUse.WithLabelValues("external").Set(float64(externalInUse))
}

func (m *gatewayMetrics) channelDropped(active, localInUse, externalInUse int) {
	if m.core == nil {
		return
	}
	m.core.ChannelsDropped.Inc()
	m.core.ChannelsActive.Set(float64(active))
	m.core.PoolSlotsInUse.WithLabelValues("local").Set(float64(localInUse))
	m.core.PoolSlotsInUse.WithLabelValues("external").Set(float64(externalInUse))
}

func (m *gatewayMetrics) channelsDrained(localInUse, externalInUse int) {
	if m.core == nil {
		return
	}
	m.core.ChannelsActive.Set(0)
	m.core.PoolSlotsInUse.WithLabelValues("local").Set(float64(localInUse))
	m.core.PoolSlotsInUse.WithLabelValues("external").Set(float64(externalInUse))
}

func (m *gatewayMetrics) channelFailure(operation, reason string) {
	if m.core == nil {
		return
	}
	m.core.ChannelFailures.WithLabelValues(operation, reason).Inc()
}

func (m *gatewayMetrics) forwarded(service types.ServiceDescription) {
	if m.core == nil {
		return
	}
	m.core.ForwardsTotal.WithLabelValues(service.String()).Inc()
}

func (m *gatewayMetrics) forwardTick(d time.Duration) {
	if m.core == nil {
		return
	}
	m.core.ForwardDuration.Observe(d.Seconds())
}

func (m *gatewayMetrics) discoveryEvent(t EventType) {
	if m.core == nil {
		return
	}
	m.core.DiscoveryEvents.WithLabelValues(t.String()).Inc()
}
