package bus

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// Conn is a thin wrapper around a NATS connection shared by the feed
// subscriber, the TagUpdate broadcaster and the SSE bridge.
type Conn struct {
	NC *nats.Conn
}

// Connect dials NATS with unbounded background reconnects. The broker being
// unreachable at startup must not keep the host from serving queries, so the
// connection keeps retrying instead of failing fast.
func Connect(url string) (*Conn, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Conn{NC: nc}, nil
}

func (c *Conn) Close() {
	if c.NC != nil {
		_ = c.NC.Drain()
		c.NC.Close()
	}
}

// Publish sends the payload as JSON. Fire-and-forget: delivery is
// at-most-once and never blocks on slow consumers.
func (c *Conn) Publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.NC.Publish(subject, data)
}

// Subscribe registers a raw message handler on the subject.
func (c *Conn) Subscribe(subject string, handler func(data []byte)) (*nats.Subscription, error) {
	return c.NC.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// ChanSubscribe delivers raw messages on a caller-owned buffered channel.
// Used by the SSE bridge so one stalled client only fills its own buffer.
func (c *Conn) ChanSubscribe(subject string, ch chan *nats.Msg) (*nats.Subscription, error) {
	return c.NC.ChanSubscribe(subject, ch)
}
