package realtime

import (
	"context"

	"pumpwatch-backend/internal/bus"
	"pumpwatch-backend/internal/domain"
)

// Broadcaster pushes one sample to all currently-subscribed live observers.
// Delivery is at-most-once per call and must stay non-blocking toward the
// ingestion path; it never persists the sample.
type Broadcaster interface {
	BroadcastTagUpdate(ctx context.Context, sample domain.TagSample) error
}

// Envelope is the named event shape delivered to observers.
type Envelope struct {
	Event string           `json:"event"`
	Data  domain.TagSample `json:"data"`
}

const EventTagUpdate = "TagUpdate"

// NATSBroadcaster fans samples out over a NATS subject. Observers (including
// the host's own SSE bridge) subscribe to the subject; a stalled observer
// only loses its own messages.
type NATSBroadcaster struct {
	Bus     *bus.Conn
	Subject string
}

func (b *NATSBroadcaster) BroadcastTagUpdate(ctx context.Context, sample domain.TagSample) error {
	return b.Bus.Publish(b.Subject, Envelope{Event: EventTagUpdate, Data: sample})
}
