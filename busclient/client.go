package busclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/metric"
	"github.com/c360/streambridge/pkg/retry"
)

// Client manages the NATS connection shared by every local-bus terminal
// and discovery source of one gateway process.
type Client struct {
	url  string
	name string

	connectTimeout time.Duration
	reconnectWait  time.Duration
	maxReconnects  int

	logger  *slog.Logger
	metrics *metric.Metrics

	mu     sync.RWMutex
	conn   *nats.Conn
	js     jetstream.JetStream
	closed bool
}

// Option is a functional option for configuring the Client
type Option func(*Client)

// WithName sets the connection name reported to the NATS server
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// WithLogger sets the logger used for connection events
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics enables bus connectivity metrics
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithConnectTimeout sets the per-attempt dial timeout
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) { c.connectTimeout = d }
}

// WithReconnectWait sets the wait between reconnection attempts
func WithReconnectWait(d time.Duration) Option {
	return func(c *Client) { c.reconnectWait = d }
}

// WithMaxReconnects sets the maximum reconnection attempts (-1 for infinite)
func WithMaxReconnects(n int) Option {
	return func(c *Client) { c.maxReconnects = n }
}

// NewClient creates a bus client for the given NATS URL. No I/O happens
// until Connect.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:            url,
		name:           fmt.Sprintf("streambridge-%s", uuid.NewString()[:8]),
		connectTimeout: 5 * time.Second,
		reconnectWait:  2 * time.Second,
		maxReconnects:  -1,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes the NATS connection, retrying transient dial
// failures with exponential backoff until ctx is cancelled or the retry
// budget is exhausted.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := retry.DoWithResult(ctx, retry.Quick(), func() (*nats.Conn, error) {
		return nats.Connect(c.url,
			nats.Name(c.name),
			nats.Timeout(c.connectTimeout),
			nats.ReconnectWait(c.reconnectWait),
			nats.MaxReconnects(c.maxReconnects),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				c.setConnected(false)
				if err != nil {
					c.logger.Warn("bus disconnected", "error", err)
				}
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				c.setConnected(true)
				if c.metrics != nil {
					c.metrics.BusReconnects.Inc()
				}
				c.logger.Info("bus reconnected", "url", nc.ConnectedUrl())
			}),
			nats.ClosedHandler(func(*nats.Conn) {
				c.setConnected(false)
			}),
		)
	})
	if err != nil {
		return errors.WrapTransient(err, "Client", "Connect", "bus connection")
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.setConnected(true)
	c.logger.Info("bus connected", "url", conn.ConnectedUrl(), "name", c.name)
	return nil
}

// Conn returns the underlying NATS connection, or nil before Connect
func (c *Client) Conn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// JetStream returns the JetStream context, creating it on first use
func (c *Client) JetStream() (jetstream.JetStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "Client", "JetStream", "connection check")
	}
	if c.js == nil {
		js, err := jetstream.New(c.conn)
		if err != nil {
			return nil, errors.WrapTransient(err, "Client", "JetStream", "jetstream context creation")
		}
		c.js = js
	}
	return c.js, nil
}

// Close drains the connection. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	if c.conn != nil {
		if err := c.conn.Drain(); err != nil {
			c.logger.Warn("bus drain failed, closing hard", "error", err)
			c.conn.Close()
		}
		c.conn = nil
	}
	c.setConnectedLocked(false)
}

func (c *Client) setConnected(up bool) {
	c.setConnectedLocked(up)
}

func (c *Client) setConnectedLocked(up bool) {
	if c.metrics == nil {
		return
	}
	if up {
		c.metrics.BusConnected.Set(1)
	} else {
		c.metrics.BusConnected.Set(0)
	}
}
