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

// OutboundChannel couples a bus subscriber with a domain-link writer
type OutboundChannel = gateway.Channel[busclient.Subscriber, wsclient.Writer]

// Outbound bridges local bus traffic out to the domain link. It is the
// concrete gateway for the bus-to-domain direction: discovery offers open
// a subscriber/writer channel per service, and every forwarding tick
// drains each subscriber onto the link.
type Outbound struct {
	engine *gateway.Gateway[busclient.Subscriber, wsclient.Writer]
	bus    *busclient.Client
	link   *wsclient.Client

	logger   *slog.Logger
	metrics  *metric.Metrics
	warnRate rate.Sometimes

	mu           sync.Mutex
	dataRoot     string
	pendingLimit int
}

// NewOutbound creates the outbound bridge over the given bus and domain
// clients, consuming discovery events from source.
func NewOutbound(bus *busclient.Client, link *wsclient.Client, source gateway.DiscoverySource, opts Options) *Outbound {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	defaults := config.Default().Bus

	o := &Outbound{
		bus:          bus,
		link:         link,
		logger:       opts.Logger.With("bridge", "outbound"),
		metrics:      opts.Metrics,
		warnRate:     rate.Sometimes{Interval: time.Second},
		dataRoot:     defaults.DataSubjectRoot,
		pendingLimit: defaults.PendingLimit,
	}

	o.engine = gateway.New(o, source,
		gateway.TerminalProvider[busclient.Subscriber]{
			Init:     o.openSubscriber,
			Finalize: func(s *busclient.Subscriber) { s.Close() },
		},
		gateway.TerminalProvider[wsclient.Writer]{
			Init:     o.openWriter,
			Finalize: func(w *wsclient.Writer) { w.Close() },
		},
		gateway.Options{
			Logger:             o.logger,
			Metrics:            opts.Metrics,
			ForwardingInterval: opts.ForwardingInterval,
			DiscoveryTimeout:   opts.DiscoveryTimeout,
		})
	return o
}

// Engine exposes the underlying gateway for configuration, lifecycle, and
// channel management.
func (o *Outbound) Engine() *gateway.Gateway[busclient.Subscriber, wsclient.Writer] {
	return o.engine
}

// LoadConfiguration applies the bus-side terminal settings. Called by the
// engine as part of Gateway.LoadConfiguration.
func (o *Outbound) LoadConfiguration(cfg *config.Config) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dataRoot = cfg.Bus.DataSubjectRoot
	o.pendingLimit = cfg.Bus.PendingLimit
	return nil
}

// Discover opens a channel on an offer and discards it on a revoke.
// Repeated offers for an already-bridged service are ignored.
func (o *Outbound) Discover(event gateway.DiscoveryEvent) {
	switch event.Type {
	case gateway.EventOffer:
		if ch, ok := o.engine.FindChannel(event.Service); ok {
			ch.Release()
			return
		}
		ch, err := o.engine.AddChannel(event.Service)
		if err != nil {
			o.warnRate.Do(func() {
				o.logger.Warn("cannot bridge offered service",
					"service", event.Service.String(), "error", err)
			})
			return
		}
		ch.Release()
	case gateway.EventRevoke:
		if err := o.engine.DiscardChannel(event.Service); err != nil {
			o.logger.Debug("revoke for unbridged service", "service", event.Service.String())
		}
	}
}

// Forward drains one channel's pending bus payloads onto the domain link.
// A failing write stops this channel for the tick; the error is logged and
// counted, never propagated.
func (o *Outbound) Forward(ch *OutboundChannel) {
	sub := ch.LocalTerminal().Get()
	writer := ch.ExternalTerminal().Get()

	if _, err := pump(sub.Take, writer.Write, forwardBatchLimit); err != nil {
		if o.metrics != nil {
			o.metrics.ForwardErrors.WithLabelValues(ch.Service().String()).Inc()
		}
		o.warnRate.Do(func() {
			o.logger.Warn("outbound forward failed",
				"service", ch.Service().String(), "error", err)
		})
	}
}

// openSubscriber is the local terminal init hook
func (o *Outbound) openSubscriber(service types.ServiceDescription, sub *busclient.Subscriber) error {
	o.mu.Lock()
	root, limit := o.dataRoot, o.pendingLimit
	o.mu.Unlock()

	return sub.Open(o.bus, root, service, limit, func() {
		o.warnRate.Do(func() {
			o.logger.Warn("pending queue full, dropping bus payload",
				"service", service.String())
		})
	})
}

// openWriter is the external terminal init hook
func (o *Outbound) openWriter(service types.ServiceDescription, w *wsclient.Writer) error {
	return w.Open(o.link, service)
}
