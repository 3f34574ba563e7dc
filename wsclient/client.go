package wsclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/time/rate"

	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/pkg/retry"
	"github.com/c360/streambridge/types"
)

// Envelope is the wire form of one payload crossing the domain link
type Envelope struct {
	Service types.ServiceDescription `msgpack:"service"`
	Payload []byte                   `msgpack:"payload"`
}

// Client owns the WebSocket connection to the domain endpoint. Writers
// share it through Send; the read pump feeds per-service queues that
// Readers drain.
type Client struct {
	endpoint         string
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	readTimeout      time.Duration
	queueLimit       int

	logger   *slog.Logger
	warnRate rate.Sometimes

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu     sync.Mutex
	queues map[types.ServiceDescription]chan []byte
	closed bool
	done   chan struct{}
}

// Option is a functional option for configuring the Client
type Option func(*Client)

// WithLogger sets the logger used for link events
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithHandshakeTimeout sets the dial handshake timeout
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) { c.handshakeTimeout = d }
}

// WithWriteTimeout sets the per-message write deadline
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) { c.writeTimeout = d }
}

// WithReadTimeout sets the read deadline refreshed on every message.
// Zero disables the deadline.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) { c.readTimeout = d }
}

// WithQueueLimit sets the per-service inbound queue capacity
func WithQueueLimit(n int) Option {
	return func(c *Client) { c.queueLimit = n }
}

// NewClient creates a domain-link client for the given ws:// or wss://
// endpoint. No I/O happens until Connect.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:         endpoint,
		handshakeTimeout: 10 * time.Second,
		writeTimeout:     5 * time.Second,
		queueLimit:       256,
		logger:           slog.Default(),
		warnRate:         rate.Sometimes{Interval: time.Second},
		queues:           make(map[types.ServiceDescription]chan []byte),
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the endpoint, retrying transient failures with backoff,
// and starts the read pump.
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.handshakeTimeout}

	conn, err := retry.DoWithResult(ctx, retry.Quick(), func() (*websocket.Conn, error) {
		conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
		return conn, err
	})
	if err != nil {
		return errors.WrapTransient(err, "Client", "Connect", "domain dial")
	}

	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()

	go c.readPump(conn)

	c.logger.Info("domain link connected", "endpoint", c.endpoint)
	return nil
}

// Send serializes one envelope onto the connection. Writes from
// concurrent terminals are serialized by the client.
func (c *Client) Send(env Envelope) error {
	data, err := msgpack.Marshal(env)
	if err != nil {
		return errors.WrapInvalid(err, "Client", "Send", "envelope encode")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.conn == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Send", "connection check")
	}
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return errors.WrapTransient(err, "Client", "Send", "write deadline")
		}
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return errors.WrapTransient(err, "Client", "Send", "envelope write")
	}
	return nil
}

// readPump demultiplexes inbound envelopes into per-service queues until
// the connection dies or Close is called.
func (c *Client) readPump(conn *websocket.Conn) {
	defer close(c.done)

	for {
		if c.readTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
				return
			}
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				c.logger.Warn("domain link read failed", "error", err)
			}
			return
		}

		var env Envelope
		if err := msgpack.Unmarshal(data, &env); err != nil {
			c.warnRate.Do(func() {
				c.logger.Warn("dropping undecodable envelope", "error", err)
			})
			continue
		}
		c.dispatch(env)
	}
}

// dispatch routes one envelope to its service queue, dropping it when no
// reader is registered or the queue is full.
func (c *Client) dispatch(env Envelope) {
	c.mu.Lock()
	queue, ok := c.queues[env.Service]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case queue <- env.Payload:
	default:
		c.warnRate.Do(func() {
			c.logger.Warn("inbound queue full, dropping payload", "service", env.Service.String())
		})
	}
}

// register creates the inbound queue for a service. A second register for
// the same service replaces the queue.
func (c *Client) register(service types.ServiceDescription) chan []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	queue := make(chan []byte, c.queueLimit)
	c.queues[service] = queue
	return queue
}

// unregister drops the inbound queue for a service
func (c *Client) unregister(service types.ServiceDescription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.queues, service)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close tears down the connection and waits for the read pump to exit.
// Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	conn := c.conn
	c.conn = nil
	c.writeMu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
		<-c.done
	}
}
