package busclient

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/gateway"
	"github.com/c360/streambridge/types"
)

// Announcement is the wire form of one discovery message on the discovery
// subject. Encoded with msgpack.
type Announcement struct {
	Type    string                   `msgpack:"type"` // "offer" or "revoke"
	Service types.ServiceDescription `msgpack:"service"`
}

// Announcement type values
const (
	AnnounceOffer  = "offer"
	AnnounceRevoke = "revoke"
)

// encodeAnnouncement serializes an announcement for the wire
func encodeAnnouncement(a Announcement) ([]byte, error) {
	return msgpack.Marshal(a)
}

// decodeAnnouncement parses a wire announcement into a discovery event
func decodeAnnouncement(data []byte) (gateway.DiscoveryEvent, error) {
	var a Announcement
	if err := msgpack.Unmarshal(data, &a); err != nil {
		return gateway.DiscoveryEvent{}, errors.WrapInvalid(err, "busclient", "decodeAnnouncement", "msgpack decode")
	}

	var t gateway.EventType
	switch a.Type {
	case AnnounceOffer:
		t = gateway.EventOffer
	case AnnounceRevoke:
		t = gateway.EventRevoke
	default:
		return gateway.DiscoveryEvent{}, errors.WrapInvalid(
			errors.ErrDecodeFailed, "busclient", "decodeAnnouncement", "announcement type check")
	}
	return gateway.DiscoveryEvent{Type: t, Service: a.Service}, nil
}

// Announcer publishes service availability announcements on the discovery
// subject. Services on the bus use it to make themselves visible to
// gateways; tests use it to drive the discovery loop.
type Announcer struct {
	client  *Client
	subject string
}

// NewAnnouncer creates an announcer for the given discovery subject
func NewAnnouncer(client *Client, subject string) *Announcer {
	return &Announcer{client: client, subject: subject}
}

// Offer announces that a service became available
func (a *Announcer) Offer(service types.ServiceDescription) error {
	return a.publish(Announcement{Type: AnnounceOffer, Service: service})
}

// Revoke announces that a service disappeared
func (a *Announcer) Revoke(service types.ServiceDescription) error {
	return a.publish(Announcement{Type: AnnounceRevoke, Service: service})
}

func (a *Announcer) publish(ann Announcement) error {
	conn := a.client.Conn()
	if conn == nil {
		return errors.WrapInvalid(errors.ErrNoConnection, "Announcer", "publish", "connection check")
	}
	data, err := encodeAnnouncement(ann)
	if err != nil {
		return errors.WrapInvalid(err, "Announcer", "publish", "announcement encode")
	}
	if err := conn.Publish(a.subject, data); err != nil {
		return errors.WrapTransient(err, "Announcer", "publish", "announcement publish")
	}
	return nil
}

// Source consumes discovery announcements through a plain synchronous
// subscription. It satisfies gateway.DiscoverySource: Next blocks for at
// most the given timeout and reports errors.ErrNoDiscoveryMessage when
// nothing arrived in time.
type Source struct {
	sub *nats.Subscription
}

// NewSource subscribes to the discovery subject
func NewSource(client *Client, subject string) (*Source, error) {
	conn := client.Conn()
	if conn == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "Source", "NewSource", "connection check")
	}
	sub, err := conn.SubscribeSync(subject)
	if err != nil {
		return nil, errors.WrapTransient(err, "Source", "NewSource", "discovery subscription")
	}
	return &Source{sub: sub}, nil
}

// Next returns the next discovery event, waiting at most timeout
func (s *Source) Next(timeout time.Duration) (gateway.DiscoveryEvent, error) {
	msg, err := s.sub.NextMsg(timeout)
	if err != nil {
		if err == nats.ErrTimeout {
			return gateway.DiscoveryEvent{}, errors.ErrNoDiscoveryMessage
		}
		return gateway.DiscoveryEvent{}, errors.WrapTransient(err, "Source", "Next", "discovery receive")
	}
	return decodeAnnouncement(msg.Data)
}

// Close tears down the subscription
func (s *Source) Close() error {
	return s.sub.Unsubscribe()
}

// JetStreamSource consumes discovery announcements through a JetStream
// stream, so a gateway that starts after services announced themselves
// still replays the retained announcements.
type JetStreamSource struct {
	consumer jetstream.Consumer
}

// NewJetStreamSource ensures the discovery stream exists and creates an
// ephemeral ordered consumer over it.
func NewJetStreamSource(ctx context.Context, client *Client, streamName, subject string) (*JetStreamSource, error) {
	js, err := client.JetStream()
	if err != nil {
		return nil, err
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subject},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    time.Hour,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "JetStreamSource", "NewJetStreamSource", "stream creation")
	}

	consumer, err := stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "JetStreamSource", "NewJetStreamSource", "consumer creation")
	}

	return &JetStreamSource{consumer: consumer}, nil
}

// Next returns the next retained discovery event, waiting at most timeout
func (s *JetStreamSource) Next(timeout time.Duration) (gateway.DiscoveryEvent, error) {
	batch, err := s.consumer.Fetch(1, jetstream.FetchMaxWait(timeout))
	if err != nil {
		return gateway.DiscoveryEvent{}, errors.WrapTransient(err, "JetStreamSource", "Next", "discovery fetch")
	}

	for msg := range batch.Messages() {
		_ = msg.Ack()
		return decodeAnnouncement(msg.Data())
	}
	if err := batch.Error(); err != nil {
		return gateway.DiscoveryEvent{}, errors.WrapTransient(err, "JetStreamSource", "Next", "discovery fetch")
	}
	return gateway.DiscoveryEvent{}, errors.ErrNoDiscoveryMessage
}
