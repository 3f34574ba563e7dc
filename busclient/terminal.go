package busclient

import (
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/types"
)

// DataSubject maps a service description onto the NATS subject carrying
// its payloads. Wildcard fields become NATS wildcards, so a subscription
// on a partially-wildcarded description matches every concrete service it
// covers.
func DataSubject(root string, service types.ServiceDescription) string {
	part := func(s string) string {
		if s == "" || s == types.Wildcard {
			return "*"
		}
		return sanitizeToken(s)
	}
	return fmt.Sprintf("%s.%s.%s.%s", root, part(service.Service), part(service.Instance), part(service.Event))
}

// sanitizeToken keeps subject tokens valid: NATS reserves '.', '*' and '>'
func sanitizeToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ':
			return '_'
		}
		return r
	}, s)
}

// Subscriber is the local terminal of an outbound channel. It buffers
// payloads arriving on a service's data subject and hands them out with a
// non-blocking Take.
//
// The zero value plus Open is a complete initialization, so a Subscriber
// can live inside an objectpool slot with Close as the finalizer.
type Subscriber struct {
	service types.ServiceDescription
	subject string
	sub     *nats.Subscription
	pending chan *nats.Msg
	dropped func()
}

// Open subscribes to the data subject for service, buffering at most
// limit messages. Messages arriving while the buffer is full are dropped;
// onDrop, when non-nil, is invoked once per dropped message.
func (s *Subscriber) Open(client *Client, root string, service types.ServiceDescription, limit int, onDrop func()) error {
	conn := client.Conn()
	if conn == nil {
		return errors.WrapInvalid(errors.ErrNoConnection, "Subscriber", "Open", "connection check")
	}
	if limit <= 0 {
		limit = 256
	}

	s.service = service
	s.subject = DataSubject(root, service)
	s.pending = make(chan *nats.Msg, limit)
	s.dropped = onDrop

	sub, err := conn.Subscribe(s.subject, func(msg *nats.Msg) {
		select {
		case s.pending <- msg:
		default:
			if s.dropped != nil {
				s.dropped()
			}
		}
	})
	if err != nil {
		return errors.WrapTransient(err, "Subscriber", "Open", "data subscription")
	}
	s.sub = sub
	return nil
}

// Take returns one buffered payload without blocking. When the buffer is
// empty it reports errors.ErrNoData.
func (s *Subscriber) Take() ([]byte, error) {
	select {
	case msg := <-s.pending:
		return msg.Data, nil
	default:
		return nil, errors.ErrNoData
	}
}

// Service returns the description this subscriber was opened for
func (s *Subscriber) Service() types.ServiceDescription {
	return s.service
}

// Subject returns the data subject this subscriber listens on
func (s *Subscriber) Subject() string {
	return s.subject
}

// Pending returns the number of buffered payloads
func (s *Subscriber) Pending() int {
	return len(s.pending)
}

// Close unsubscribes. After Close the terminal is reusable via Open.
func (s *Subscriber) Close() {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
		s.sub = nil
	}
	s.pending = nil
}

// Publisher is the local terminal of an inbound channel. It publishes
// payloads onto a service's data subject.
//
// Like Subscriber, it is zero-value initializable for pool slots.
type Publisher struct {
	client  *Client
	service types.ServiceDescription
	subject string
}

// Open binds the publisher to the data subject for service
func (p *Publisher) Open(client *Client, root string, service types.ServiceDescription) error {
	if client.Conn() == nil {
		return errors.WrapInvalid(errors.ErrNoConnection, "Publisher", "Open", "connection check")
	}
	p.client = client
	p.service = service
	p.subject = DataSubject(root, service)
	return nil
}

// Publish sends one payload onto the data subject
func (p *Publisher) Publish(payload []byte) error {
	conn := p.client.Conn()
	if conn == nil {
		return errors.WrapTransient(errors.ErrConnectionLost, "Publisher", "Publish", "connection check")
	}
	if err := conn.Publish(p.subject, payload); err != nil {
		return errors.WrapTransient(err, "Publisher", "Publish", "payload publish")
	}
	return nil
}

// Service returns the description this publisher was opened for
func (p *Publisher) Service() types.ServiceDescription {
	return p.service
}

// Subject returns the data subject this publisher writes to
func (p *Publisher) Subject() string {
	return p.subject
}

// Close releases the connection reference. After Close the terminal is
// reusable via Open.
func (p *Publisher) Close() {
	p.client = nil
}
