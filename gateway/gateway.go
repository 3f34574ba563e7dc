package gateway

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/c360/streambridge/config"
	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/metric"
	"github.com/c360/streambridge/pkg/objectpool"
	"github.com/c360/streambridge/types"
)

// MaxChannelNumber bounds both the terminal pools and the channel
// registry. It is a build-time capacity constant, not a runtime setting.
const MaxChannelNumber = 64

// Gateway lifecycle states. Stopped is terminal: re-running a gateway
// requires a fresh instance, since both loop goroutines are joined on
// shutdown.
const (
	stateIdle int32 = iota
	stateRunning
	stateStopped
)

// Implementation is the extension-point contract a concrete gateway
// fulfils. The engine calls LoadConfiguration once before the loops start,
// Discover once per incoming discovery event on the discovery goroutine,
// and Forward once per channel per forwarding tick on the forwarding
// goroutine.
//
// Discover and Forward must avoid unbounded blocking: one slow channel or
// one bad event must not stall a loop indefinitely. Errors inside them are
// the implementation's to handle; log-and-continue is the expected norm.
type Implementation[L, E any] interface {
	LoadConfiguration(cfg *config.Config) error
	Discover(event DiscoveryEvent)
	Forward(channel *Channel[L, E])
}

// TerminalProvider bundles the construction and teardown hooks for one
// terminal side. Init runs inside the pool slot when a channel is created;
// Finalize runs exactly once when the last handle to the terminal is
// released.
type TerminalProvider[T any] struct {
	Init     TerminalInit[T]
	Finalize func(*T)
}

// Options configures a Gateway. The zero value is usable: loops fall back
// to the defaults from config.Default and logging goes to slog.Default.
type Options struct {
	Logger  *slog.Logger
	Metrics *metric.Metrics
	Clock   clock.Clock

	// ForwardingInterval is the cadence of the forwarding loop.
	ForwardingInterval time.Duration
	// DiscoveryTimeout bounds how long the discovery loop blocks waiting
	// for the next event before re-checking the running flag. It is the
	// upper bound on discovery-loop shutdown latency.
	DiscoveryTimeout time.Duration
}

// Gateway is the generic bridging engine. It owns the channel registry and
// the terminal pools, runs the discovery and forwarding loops as two
// goroutines, and exposes the channel management API used by concrete
// gateways and management callers.
type Gateway[L, E any] struct {
	impl   Implementation[L, E]
	source DiscoverySource

	registry     *channelRegistry[L, E]
	localPool    *objectpool.Pool[L]
	externalPool *objectpool.Pool[E]
	localInit    TerminalInit[L]
	externalInit TerminalInit[E]

	logger  *slog.Logger
	metrics *gatewayMetrics
	clk     clock.Clock

	forwardingInterval time.Duration
	discoveryTimeout   time.Duration

	state    atomic.Int32
	stop     chan struct{}
	loops    sync.WaitGroup
	stateMu  sync.Mutex
	warnRate rate.Sometimes
}

// New creates a gateway engine for the given implementation and discovery
// source. The terminal providers supply construction and teardown for the
// pool-backed terminals on each side.
func New[L, E any](
	impl Implementation[L, E],
	source DiscoverySource,
	local TerminalProvider[L],
	external TerminalProvider[E],
	opts Options,
) *Gateway[L, E] {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	defaults := config.Default().Gateway
	if opts.ForwardingInterval <= 0 {
		opts.ForwardingInterval = defaults.ForwardingInterval
	}
	if opts.DiscoveryTimeout <= 0 {
		opts.DiscoveryTimeout = defaults.DiscoveryTimeout
	}

	return &Gateway[L, E]{
		impl:               impl,
		source:             source,
		registry:           newChannelRegistry[L, E](MaxChannelNumber),
		localPool:          objectpool.New[L](MaxChannelNumber, local.Finalize),
		externalPool:       objectpool.New[E](MaxChannelNumber, external.Finalize),
		localInit:          local.Init,
		externalInit:       external.Init,
		logger:             opts.Logger,
		metrics:            newGatewayMetrics(opts.Metrics),
		clk:                opts.Clock,
		forwardingInterval: opts.ForwardingInterval,
		discoveryTimeout:   opts.DiscoveryTimeout,
		stop:               make(chan struct{}),
		warnRate:           rate.Sometimes{Interval: time.Second},
	}
}

// LoadConfiguration applies the gateway loop settings from the process
// configuration and delegates the rest to the concrete gateway. Must be
// called before Run; calling it on a running gateway has no effect on the
// loops already started.
func (g *Gateway[L, E]) LoadConfiguration(cfg *config.Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Gateway", "LoadConfiguration", "nil config check")
	}
	if cfg.Gateway.ForwardingInterval > 0 {
		g.forwardingInterval = cfg.Gateway.ForwardingInterval
	}
	if cfg.Gateway.DiscoveryTimeout > 0 {
		g.discoveryTimeout = cfg.Gateway.DiscoveryTimeout
	}
	return g.impl.LoadConfiguration(cfg)
}

// AddChannel creates a pool-backed channel for the given service, stores a
// copy in the registry, and returns the caller's own clone of it. The
// caller must release the returned channel when done with it.
//
// Wildcard services are rejected with ErrUnsupportedServiceType. Pool
// exhaustion, terminal construction failure, and a full registry all
// surface as ErrChannelCreation; no pool slot is leaked on any failure
// path.
func (g *Gateway[L, E]) AddChannel(service types.ServiceDescription) (Channel[L, E], error) {
	if service.IsWildcard() {
		g.metrics.channelFailure("add", "unsupported_service")
		return Channel[L, E]{}, errors.WrapInvalid(
			errors.ErrUnsupportedServiceType, "Gateway", "AddChannel", "service validation")
	}

	ch, err := CreateChannel(service, g.localPool, g.externalPool, g.localInit, g.externalInit)
	if err != nil {
		g.metrics.channelFailure("add", "creation")
		g.logger.Warn("channel creation failed", "service", service.String(), "error", err)
		return Channel[L, E]{}, errors.Wrap(
			errors.ErrChannelCreation, "Gateway", "AddChannel", "channel creation")
	}

	if !g.registry.insert(ch) {
		ch.Release()
		g.metrics.channelFailure("add", "registry_full")
		return Channel[L, E]{}, errors.Wrap(
			errors.ErrChannelCreation, "Gateway", "AddChannel", "registry insertion")
	}

	g.metrics.channelAdded(g.registry.size(), g.localPool.InUse(), g.externalPool.InUse())
	g.logger.Debug("channel added", "service", service.String())
	return ch.Clone(), nil
}

// FindChannel returns a clone of the channel bridging the given service,
// if one exists. The caller must release the clone; it stays valid even if
// the channel is concurrently discarded from the registry.
func (g *Gateway[L, E]) FindChannel(service types.ServiceDescription) (Channel[L, E], bool) {
	return g.registry.find(service)
}

// DiscardChannel removes the channel for the given service from the
// registry, dropping the registry's reference to its terminals. Holders of
// prior clones are unaffected. Fails with ErrNonexistentChannel when no
// channel matches.
func (g *Gateway[L, E]) DiscardChannel(service types.ServiceDescription) error {
	if !g.registry.remove(service) {
		g.metrics.channelFailure("discard", "nonexistent")
		return errors.WrapInvalid(
			errors.ErrNonexistentChannel, "Gateway", "DiscardChannel", "channel lookup")
	}
	g.metrics.channelDropped(g.registry.size(), g.localPool.InUse(), g.externalPool.InUse())
	g.logger.Debug("channel discarded", "service", service.String())
	return nil
}

// ForEachChannel applies the visitor to every channel currently in the
// registry, under the registry's guard. The visitor must not call
// AddChannel, DiscardChannel, FindChannel, or ForEachChannel; the guard is
// not reentrant and doing so deadlocks. Visitors that need to retain a
// channel beyond the call must clone it.
func (g *Gateway[L, E]) ForEachChannel(visitor func(*Channel[L, E])) {
	g.registry.forEach(visitor)
}

// NumberOfChannels returns the current registry size
func (g *Gateway[L, E]) NumberOfChannels() uint64 {
	return uint64(g.registry.size())
}

// Run starts the discovery and forwarding loops as independent goroutines.
// Calling Run on a gateway that is already running, or that has been shut
// down, is a no-op.
func (g *Gateway[L, E]) Run() {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()

	if !g.state.CompareAndSwap(stateIdle, stateRunning) {
		return
	}

	g.loops.Add(2)
	go g.discoveryLoop()
	go g.forwardingLoop()
	g.logger.Info("gateway running",
		"forwarding_interval", g.forwardingInterval,
		"discovery_timeout", g.discoveryTimeout)
}

// Shutdown signals both loops to terminate, joins them, and releases every
// channel still in the registry. It blocks until both loops have exited,
// never fails, and is safe to call more than once or on a gateway that was
// never run.
func (g *Gateway[L, E]) Shutdown() {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()

	prev := g.state.Swap(stateStopped)
	if prev == stateRunning {
		close(g.stop)
		g.loops.Wait()
	}
	if prev != stateStopped {
		g.registry.drain()
		g.metrics.channelsDrained(g.localPool.InUse(), g.externalPool.InUse())
		g.logger.Info("gateway stopped")
	}
}

// discoveryLoop consumes service-availability events from the local bus
// and hands them to the concrete gateway. The bounded wait in Next keeps
// the loop responsive to shutdown.
func (g *Gateway[L, E]) discoveryLoop() {
	defer g.loops.Done()

	for {
		select {
		case <-g.stop:
			return
		default:
		}

		event, err := g.source.Next(g.discoveryTimeout)
		if err != nil {
			if !errors.IsTransient(err) {
				g.warnRate.Do(func() {
					g.logger.Warn("discovery source error", "error", err)
				})
			}
			continue
		}

		g.metrics.discoveryEvent(event.Type)
		g.logger.Debug("discovery event",
			"type", event.Type.String(), "service", event.Service.String())
		g.impl.Discover(event)
	}
}

// forwardingLoop periodically applies the concrete gateway's Forward to
// every live channel.
func (g *Gateway[L, E]) forwardingLoop() {
	defer g.loops.Done()

	ticker := g.clk.Ticker(g.forwardingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			start := g.clk.Now()
			g.registry.forEach(func(ch *Channel[L, E]) {
				g.impl.Forward(ch)
				g.metrics.forwarded(ch.Service())
			})
			g.metrics.forwardTick(g.clk.Since(start))
		}
	}
}
