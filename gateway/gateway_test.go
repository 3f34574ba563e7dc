package gateway

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/streambridge/config"
	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/metric"
	"github.com/c360/streambridge/types"
)

// queueSource feeds discovery events from a buffered channel with the
// bounded-wait contract of DiscoverySource.
type queueSource struct {
	events chan DiscoveryEvent
}

func newQueueSource() *queueSource {
	return &queueSource{events: make(chan DiscoveryEvent, 16)}
}

func (s *queueSource) Next(timeout time.Duration) (DiscoveryEvent, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-time.After(timeout):
		return DiscoveryEvent{}, errors.ErrNoDiscoveryMessage
	}
}

// recordingImpl adds/discards channels from discovery events and counts
// forwards per service.
type recordingImpl struct {
	mu       sync.Mutex
	engine   *Gateway[localStub, externalStub]
	loaded   bool
	forwards map[types.ServiceDescription]int
}

func newRecordingImpl() *recordingImpl {
	return &recordingImpl{forwards: make(map[types.ServiceDescription]int)}
}

func (r *recordingImpl) LoadConfiguration(*config.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = true
	return nil
}

func (r *recordingImpl) Discover(event DiscoveryEvent) {
	switch event.Type {
	case EventOffer:
		if ch, err := r.engine.AddChannel(event.Service); err == nil {
			ch.Release()
		}
	case EventRevoke:
		_ = r.engine.DiscardChannel(event.Service)
	}
}

func (r *recordingImpl) Forward(ch *Channel[localStub, externalStub]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forwards[ch.Service()]++
}

func (r *recordingImpl) forwardCount(service types.ServiceDescription) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forwards[service]
}

func newTestGateway(t *testing.T, opts Options) (*Gateway[localStub, externalStub], *recordingImpl, *queueSource) {
	t.Helper()
	impl := newRecordingImpl()
	source := newQueueSource()
	g := New(impl, source,
		TerminalProvider[localStub]{Init: openLocal, Finalize: func(s *localStub) { s.closed = true }},
		TerminalProvider[externalStub]{Init: openExternal, Finalize: func(s *externalStub) { s.closed = true }},
		opts)
	impl.engine = g
	return g, impl, source
}

func TestGateway_AddFindDiscardScenario(t *testing.T) {
	g, _, _ := newTestGateway(t, Options{})

	serviceA := types.NewServiceDescription("a", "main", "data")
	serviceB := types.NewServiceDescription("b", "main", "data")

	chA, err := g.AddChannel(serviceA)
	require.NoError(t, err)
	chA.Release()
	chB, err := g.AddChannel(serviceB)
	require.NoError(t, err)
	chB.Release()

	assert.Equal(t, uint64(2), g.NumberOfChannels())

	require.NoError(t, g.DiscardChannel(serviceA))
	_, ok := g.FindChannel(serviceA)
	assert.False(t, ok)

	found, ok := g.FindChannel(serviceB)
	require.True(t, ok)
	assert.Equal(t, serviceB, found.Service())
	found.Release()

	require.NoError(t, g.DiscardChannel(serviceB))
	assert.Equal(t, uint64(0), g.NumberOfChannels())
}

func TestGateway_AddChannel_RejectsWildcard(t *testing.T) {
	g, _, _ := newTestGateway(t, Options{})

	_, err := g.AddChannel(types.NewServiceDescription("*", "main", "data"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnsupportedServiceType)
	assert.Equal(t, uint64(0), g.NumberOfChannels(), "failed add must not mutate the registry")
}

func TestGateway_CapacityBound(t *testing.T) {
	g, _, _ := newTestGateway(t, Options{})

	for i := 0; i < MaxChannelNumber; i++ {
		ch, err := g.AddChannel(types.NewServiceDescription(fmt.Sprintf("svc-%d", i), "main", "data"))
		require.NoError(t, err)
		ch.Release()
	}
	assert.Equal(t, uint64(MaxChannelNumber), g.NumberOfChannels())

	_, err := g.AddChannel(types.NewServiceDescription("overflow", "main", "data"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrChannelCreation)
	assert.Equal(t, uint64(MaxChannelNumber), g.NumberOfChannels())

	// Discarding one frees a slot for the next add
	require.NoError(t, g.DiscardChannel(types.NewServiceDescription("svc-0", "main", "data")))
	ch, err := g.AddChannel(types.NewServiceDescription("overflow", "main", "data"))
	require.NoError(t, err)
	ch.Release()
}

func TestGateway_DiscardNonexistent(t *testing.T) {
	g, _, _ := newTestGateway(t, Options{})

	err := g.DiscardChannel(types.NewServiceDescription("ghost", "main", "data"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNonexistentChannel)
	assert.Equal(t, uint64(0), g.NumberOfChannels())
}

func TestGateway_ChannelOutlivesDiscard(t *testing.T) {
	g, _, _ := newTestGateway(t, Options{})
	service := types.NewServiceDescription("radar", "front", "points")

	ch, err := g.AddChannel(service)
	require.NoError(t, err)
	ch.Release()

	clone, ok := g.FindChannel(service)
	require.True(t, ok)

	require.NoError(t, g.DiscardChannel(service))
	assert.False(t, clone.LocalTerminal().Get().closed,
		"discard must not invalidate in-flight holders")
	assert.False(t, clone.ExternalTerminal().Get().closed)

	clone.Release()
	assert.True(t, clone.LocalTerminal().Get().closed)
}

func TestGateway_ForEachChannel(t *testing.T) {
	g, _, _ := newTestGateway(t, Options{})
	for _, name := range []string{"a", "b"} {
		ch, err := g.AddChannel(types.NewServiceDescription(name, "main", "data"))
		require.NoError(t, err)
		ch.Release()
	}

	var visited []string
	g.ForEachChannel(func(ch *Channel[localStub, externalStub]) {
		visited = append(visited, ch.Service().Service)
	})
	assert.ElementsMatch(t, []string{"a", "b"}, visited)
}

func TestGateway_LoadConfiguration(t *testing.T) {
	g, impl, _ := newTestGateway(t, Options{})

	cfg := config.Default()
	cfg.Gateway.ForwardingInterval = 7 * time.Millisecond
	cfg.Gateway.DiscoveryTimeout = 13 * time.Millisecond

	require.NoError(t, g.LoadConfiguration(cfg))
	assert.True(t, impl.loaded)
	assert.Equal(t, 7*time.Millisecond, g.forwardingInterval)
	assert.Equal(t, 13*time.Millisecond, g.discoveryTimeout)

	err := g.LoadConfiguration(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestGateway_RunDiscoveryAndForwarding(t *testing.T) {
	g, impl, source := newTestGateway(t, Options{
		Metrics:            metric.NewMetricsRegistry().CoreMetrics(),
		ForwardingInterval: 5 * time.Millisecond,
		DiscoveryTimeout:   10 * time.Millisecond,
	})
	service := types.NewServiceDescription("camera", "rear", "frames")

	g.Run()
	g.Run() // idempotent: second call is a no-op

	source.events <- DiscoveryEvent{Type: EventOffer, Service: service}
	require.Eventually(t, func() bool {
		return g.NumberOfChannels() == 1
	}, time.Second, time.Millisecond, "discovery loop must add the offered service")

	require.Eventually(t, func() bool {
		return impl.forwardCount(service) > 0
	}, time.Second, time.Millisecond, "forwarding loop must visit the channel")

	source.events <- DiscoveryEvent{Type: EventRevoke, Service: service}
	require.Eventually(t, func() bool {
		return g.NumberOfChannels() == 0
	}, time.Second, time.Millisecond, "discovery loop must discard the revoked service")

	g.Shutdown()
}

func TestGateway_ForwardingCadenceWithMockClock(t *testing.T) {
	mock := clock.NewMock()
	g, impl, _ := newTestGateway(t, Options{
		Clock:              mock,
		ForwardingInterval: 50 * time.Millisecond,
		DiscoveryTimeout:   5 * time.Millisecond,
	})
	service := types.NewServiceDescription("lidar", "roof", "scan")

	ch, err := g.AddChannel(service)
	require.NoError(t, err)
	ch.Release()

	g.Run()

	// No ticks yet, so no forwards
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, impl.forwardCount(service))

	require.Eventually(t, func() bool {
		mock.Add(50 * time.Millisecond)
		return impl.forwardCount(service) > 0
	}, time.Second, 5*time.Millisecond, "advancing the clock must drive forwarding ticks")

	g.Shutdown()
}

func TestGateway_ShutdownJoinsLoopsAndDrains(t *testing.T) {
	g, _, _ := newTestGateway(t, Options{
		ForwardingInterval: 5 * time.Millisecond,
		DiscoveryTimeout:   5 * time.Millisecond,
	})
	service := types.NewServiceDescription("gps", "main", "fix")

	ch, err := g.AddChannel(service)
	require.NoError(t, err)

	g.Run()
	g.Shutdown()

	// The registry's copy was drained; ours is still alive
	assert.Equal(t, uint64(0), g.NumberOfChannels())
	assert.False(t, ch.LocalTerminal().Get().closed)
	ch.Release()
	assert.True(t, ch.LocalTerminal().Get().closed)

	// Double shutdown and run-after-shutdown are safe no-ops
	g.Shutdown()
	g.Run()
	assert.Equal(t, uint64(0), g.NumberOfChannels())
}

func TestGateway_ShutdownWithoutRun(t *testing.T) {
	g, _, _ := newTestGateway(t, Options{})
	ch, err := g.AddChannel(types.NewServiceDescription("a", "main", "data"))
	require.NoError(t, err)
	ch.Release()

	g.Shutdown()
	assert.Equal(t, uint64(0), g.NumberOfChannels())
}

func TestGateway_ConcurrentManagementAndIteration(t *testing.T) {
	g, _, _ := newTestGateway(t, Options{})

	const (
		goroutines = 8
		iterations = 100
	)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			service := types.NewServiceDescription(fmt.Sprintf("svc-%d", id), "main", "data")
			for j := 0; j < iterations; j++ {
				ch, err := g.AddChannel(service)
				if err != nil {
					t.Error(err)
					return
				}
				ch.Release()

				g.ForEachChannel(func(*Channel[localStub, externalStub]) {})

				if found, ok := g.FindChannel(service); ok {
					found.Release()
				}

				if err := g.DiscardChannel(service); err != nil {
					t.Error(err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, uint64(0), g.NumberOfChannels())
}
