package bridge

import (
	"log/slog"
	"time"

	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/metric"
)

// forwardBatchLimit bounds how many payloads one channel may move in a
// single forwarding tick, so a chatty service cannot starve the others.
const forwardBatchLimit = 64

// Options configures a bridge. The zero value is usable.
type Options struct {
	Logger  *slog.Logger
	Metrics *metric.Metrics

	// ForwardingInterval and DiscoveryTimeout override the engine loop
	// defaults until LoadConfiguration is applied.
	ForwardingInterval time.Duration
	DiscoveryTimeout   time.Duration
}

// pump moves payloads from take to send until the source reports no more
// data, the batch budget is spent, or a send fails. It returns the number
// of payloads moved and the send error, if any. A drained source is not
// an error.
func pump(take func() ([]byte, error), send func([]byte) error, budget int) (int, error) {
	for moved := 0; ; moved++ {
		if moved >= budget {
			return moved, nil
		}
		payload, err := take()
		if err != nil {
			if errors.Is(err, errors.ErrNoData) {
				return moved, nil
			}
			return moved, err
		}
		if err := send(payload); err != nil {
			return moved, err
		}
	}
}
