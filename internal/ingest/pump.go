package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"pumpwatch-backend/internal/bus"
	"pumpwatch-backend/internal/domain"
	"pumpwatch-backend/internal/realtime"
	"pumpwatch-backend/internal/tagcache"
)

const DefaultFeedSubject = "tag.updates"

// Pump is the long-lived ingestion task: it consumes the collector's feed
// subject, refreshes the tag cache and fans each sample out to live
// observers. A malformed message or a failed broadcast never stops the loop.
type Pump struct {
	Bus     *bus.Conn
	Subject string
	Cache   *tagcache.Cache
	Sink    realtime.Broadcaster
	Logger  *slog.Logger

	PushTimeout time.Duration
}

// Run subscribes and blocks until ctx is cancelled, then unsubscribes.
func (p *Pump) Run(ctx context.Context) error {
	subject := p.Subject
	if subject == "" {
		subject = DefaultFeedSubject
	}
	sub, err := p.Bus.Subscribe(subject, func(data []byte) {
		p.handle(ctx, data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	p.Logger.Info("ingestion pump started", slog.String("subject", subject))

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil {
		p.Logger.Warn("unsubscribe failed", slog.String("error", err.Error()))
	}
	p.Logger.Info("ingestion pump stopped")
	return nil
}

// handle processes one feed message: decode, cache, broadcast. The cache
// update is never rolled back when the broadcast fails.
func (p *Pump) handle(ctx context.Context, data []byte) {
	sample, err := decodeSample(data)
	if err != nil {
		p.Logger.Warn("dropping malformed feed message", slog.String("error", err.Error()))
		return
	}

	p.Cache.Update(sample)

	pushCtx := ctx
	if p.PushTimeout > 0 {
		var cancel context.CancelFunc
		pushCtx, cancel = context.WithTimeout(ctx, p.PushTimeout)
		defer cancel()
	}
	if err := p.Sink.BroadcastTagUpdate(pushCtx, sample); err != nil {
		p.Logger.Error("tag update broadcast failed",
			slog.Int("tagId", sample.TagID),
			slog.String("error", err.Error()))
	}
}

func decodeSample(data []byte) (domain.TagSample, error) {
	var sample domain.TagSample
	if err := json.Unmarshal(data, &sample); err != nil {
		return domain.TagSample{}, err
	}
	if sample.TagID == 0 || sample.TagName == "" || sample.PumpID == 0 {
		return domain.TagSample{}, fmt.Errorf("missing required fields")
	}
	if sample.Timestamp.IsZero() {
		return domain.TagSample{}, fmt.Errorf("missing timestamp")
	}
	return sample, nil
}
