package chat

import (
	"context"
	"log/slog"
)

// Broadcaster fans one payload out to every distinct identity in a
// registry snapshot.
//
// Guarantees:
//   - At most one delivery per logical identity per call, however many
//     tokens that identity holds.
//   - A failure for one recipient never blocks or fails the others.
//   - A payload over the transport ceiling is dropped before any send.
//
// No ordering across recipients is promised. Fan-out is inline; rooms
// large enough to need a work queue are out of scope for now.
type Broadcaster struct {
	log       *slog.Logger
	transport Transport
}

// NewBroadcaster constructs a Broadcaster over the given transport.
func NewBroadcaster(log *slog.Logger, transport Transport) *Broadcaster {
	return &Broadcaster{log: log, transport: transport}
}

// Broadcast delivers payload to the deduplicated recipient set of snap and
// returns how many recipients it was handed to the transport for.
func (b *Broadcaster) Broadcast(ctx context.Context, payload string, snap Snapshot) int {
	if max := b.transport.MaxMessageLength(); len(payload) > max {
		metricDropped.WithLabelValues("oversize").Inc()
		b.log.Info("broadcast.drop.oversize", "size", len(payload), "max", max)
		return 0
	}

	metricBroadcasts.Inc()

	delivered := 0
	for _, id := range snap.Identities() {
		key := id.RecipientKey()
		if err := b.transport.Send(ctx, key, payload); err != nil {
			metricDeliveryFailures.Inc()
			b.log.Warn("broadcast.send.fail", "recipient", key, "err", err)
			continue
		}
		metricDeliveries.Inc()
		delivered++
	}

	b.log.Debug("broadcast.done", "recipients", delivered, "size", len(payload))
	return delivered
}
