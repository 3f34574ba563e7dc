package bridge

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/streambridge/busclient"
	"github.com/c360/streambridge/config"
	"github.com/c360/streambridge/gateway"
	"github.com/c360/streambridge/metric"
	"github.com/c360/streambridge/types"
	"github.com/c360/streambridge/wsclient"
)

// InboundChannel couples a bus publisher with a domain-link reader
type InboundChannel = gateway.Channel[busclient.Publisher, wsclient.Reader]

// Inbound bridges domain-link traffic back onto the local bus: the mirror
// image of Outbound. Each channel's reader drains the link's per-service
// queue and republishes on the service's data subject.
type Inbound struct {
	engine *gateway.Gateway[busclient.Publisher, wsclient.Reader]
	bus    *busclient.Client
	link   *wsclient.Client

	logger   *slog.Logger
	metrics  *metric.Metrics
	warnRate rate.Sometimes

	mu       sync.Mutex
	dataRoot string
}

// NewInbound creates the inbound bridge over the given bus and domain
// clients, consuming discovery events from source.
func NewInbound(bus *busclient.Client, link *wsclient.Client, source gateway.DiscoverySource, opts Options) *Inbound {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	i := &Inbound{
		bus:      bus,
		link:     link,
		logger:   opts.Logger.With("bridge", "inbound"),
		metrics:  opts.Metrics,
		warnRate: rate.Sometimes{Interval: time.Second},
		dataRoot: config.Default().Bus.DataSubjectRoot,
	}

	i.engine = gateway.New(i, source,
		gateway.TerminalProvider[busclient.Publisher]{
			Init:     i.openPublisher,
			Finalize: func(p *busclient.Publisher) { p.Close() },
		},
		gateway.TerminalProvider[wsclient.Reader]{
			Init:     i.openReader,
			Finalize: func(r *wsclient.Reader) { r.Close() },
		},
		gateway.Options{
			Logger:             i.logger,
			Metrics:            opts.Metrics,
			ForwardingInterval: opts.ForwardingInterval,
			DiscoveryTimeout:   opts.DiscoveryTimeout,
		})
	return i
}

// Engine exposes the underlying gateway for configuration, lifecycle, and
// channel management.
func (i *Inbound) Engine() *gateway.Gateway[busclient.Publisher, wsclient.Reader] {
	return i.engine
}

// LoadConfiguration applies the bus-side terminal settings. Called by the
// engine as part of Gateway.LoadConfiguration.
func (i *Inbound) LoadConfiguration(cfg *config.Config) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.dataRoot = cfg.Bus.DataSubjectRoot
	return nil
}

// Discover opens a channel on an offer and discards it on a revoke
func (i *Inbound) Discover(event gateway.DiscoveryEvent) {
	switch event.Type {
	case gateway.EventOffer:
		if ch, ok := i.engine.FindChannel(event.Service); ok {
			ch.Release()
			return
		}
		ch, err := i.engine.AddChannel(event.Service)
		if err != nil {
			i.warnRate.Do(func() {
				i.logger.Warn("cannot bridge offered service",
					"service", event.Service.String(), "error", err)
			})
			return
		}
		ch.Release()
	case gateway.EventRevoke:
		if err := i.engine.DiscardChannel(event.Service); err != nil {
			i.logger.Debug("revoke for unbridged service", "service", event.Service.String())
		}
	}
}

// Forward drains one channel's queued domain payloads onto the bus
func (i *Inbound) Forward(ch *InboundChannel) {
	pub := ch.LocalTerminal().Get()
	reader := ch.ExternalTerminal().Get()

	if _, err := pump(reader.Take, pub.Publish, forwardBatchLimit); err != nil {
		if i.metrics != nil {
			i.metrics.ForwardErrors.WithLabelValues(ch.Service().String()).Inc()
		}
		i.warnRate.Do(func() {
			i.logger.Warn("inbound forward failed",
				"service", ch.Service().String(), "error", err)
		})
	}
}

// openPublisher is the local terminal init hook
func (i *Inbound) openPublisher(service types.ServiceDescription, pub *busclient.Publisher) error {
	i.mu.Lock()
	root := i.dataRoot
	i.mu.Unlock()
	return pub.Open(i.bus, root, service)
}

// openReader is the external terminal init hook
func (i *Inbound) openReader(service types.ServiceDescription, r *wsclient.Reader) error {
	return r.Open(i.link, service)
}
