package wsclient

import (
	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/types"
)

// Writer is the external terminal of an outbound channel. Write wraps a
// payload in an envelope for its service and sends it over the shared
// domain link.
//
// The zero value plus Open is a complete initialization, so a Writer can
// live inside an objectpool slot with Close as the finalizer.
type Writer struct {
	client  *Client
	service types.ServiceDescription
}

// Open binds the writer to a service on the given client
func (w *Writer) Open(client *Client, service types.ServiceDescription) error {
	w.client = client
	w.service = service
	return nil
}

// Write sends one payload for the writer's service
func (w *Writer) Write(payload []byte) error {
	if w.client == nil {
		return errors.WrapInvalid(errors.ErrTerminalClosed, "Writer", "Write", "terminal check")
	}
	return w.client.Send(Envelope{Service: w.service, Payload: payload})
}

// Service returns the description this writer was opened for
func (w *Writer) Service() types.ServiceDescription {
	return w.service
}

// Close releases the client reference. After Close the terminal is
// reusable via Open.
func (w *Writer) Close() {
	w.client = nil
}

// Reader is the external terminal of an inbound channel. It drains the
// per-service queue the client's read pump fills.
//
// Like Writer, it is zero-value initializable for pool slots.
type Reader struct {
	client  *Client
	service types.ServiceDescription
	queue   chan []byte
}

// Open registers the reader's service queue on the given client
func (r *Reader) Open(client *Client, service types.ServiceDescription) error {
	r.client = client
	r.service = service
	r.queue = client.register(service)
	return nil
}

// Take returns one queued payload without blocking. When the queue is
// empty it reports errors.ErrNoData.
func (r *Reader) Take() ([]byte, error) {
	if r.queue == nil {
		return nil, errors.WrapInvalid(errors.ErrTerminalClosed, "Reader", "Take", "terminal check")
	}
	select {
	case payload := <-r.queue:
		return payload, nil
	default:
		return nil, errors.ErrNoData
	}
}

// Service returns the description this reader was opened for
func (r *Reader) Service() types.ServiceDescription {
	return r.service
}

// Close unregisters the service queue. After Close the terminal is
// reusable via Open.
func (r *Reader) Close() {
	if r.client != nil {
		r.client.unregister(r.service)
	}
	r.client = nil
	r.queue = nil
}
