package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"pumpwatch-backend/internal/domain"
	"pumpwatch-backend/internal/tagcache"
)

type fakeSink struct {
	pushed []domain.TagSample
	err    error
}

func (f *fakeSink) BroadcastTagUpdate(ctx context.Context, sample domain.TagSample) error {
	f.pushed = append(f.pushed, sample)
	return f.err
}

func newTestPump(sink *fakeSink) (*Pump, *tagcache.Cache) {
	cache := tagcache.New(time.Hour)
	return &Pump{
		Cache:  cache,
		Sink:   sink,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, cache
}

func TestHandleUpdatesCacheAndBroadcasts(t *testing.T) {
	sink := &fakeSink{}
	pump, cache := newTestPump(sink)

	msg := []byte(`{"TagId":3,"TagName":"TempA","PumpId":1,"Timestamp":"2026-08-29T10:00:00Z","Value":42.5,"Quality":"Good"}`)
	pump.handle(context.Background(), msg)

	latest := cache.Latest(1)
	if len(latest) != 1 || latest[0].TagID != 3 {
		t.Fatalf("expected cached sample for tag 3, got %+v", latest)
	}
	if len(sink.pushed) != 1 || sink.pushed[0].TagName != "TempA" {
		t.Fatalf("expected one broadcast, got %+v", sink.pushed)
	}
}

func TestHandleDropsMalformedMessage(t *testing.T) {
	sink := &fakeSink{}
	pump, cache := newTestPump(sink)

	pump.handle(context.Background(), []byte(`{not json`))
	pump.handle(context.Background(), []byte(`{"TagName":"TempA"}`))
	pump.handle(context.Background(), []byte(`{"TagId":3,"TagName":"TempA","PumpId":1,"Value":1}`))

	if len(cache.AllLatest()) != 0 {
		t.Fatalf("malformed messages must not reach the cache")
	}
	if len(sink.pushed) != 0 {
		t.Fatalf("malformed messages must not be broadcast")
	}
}

func TestHandleKeepsCacheWhenSinkFails(t *testing.T) {
	sink := &fakeSink{err: errors.New("hub down")}
	pump, cache := newTestPump(sink)

	msg := []byte(`{"TagId":7,"TagName":"Vrs","PumpId":2,"Timestamp":"2026-08-29T10:00:00Z","Value":381,"Quality":"Good"}`)
	pump.handle(context.Background(), msg)

	latest := cache.Latest(2)
	if len(latest) != 1 || latest[0].TagID != 7 {
		t.Fatalf("cache update must survive sink failure, got %+v", latest)
	}
}

func TestHandleNullValueAccepted(t *testing.T) {
	sink := &fakeSink{}
	pump, cache := newTestPump(sink)

	msg := []byte(`{"TagId":5,"TagName":"TankIn","PumpId":1,"Timestamp":"2026-08-29T10:00:00Z","Value":null,"Quality":"Bad"}`)
	pump.handle(context.Background(), msg)

	latest := cache.Latest(1)
	if len(latest) != 1 || latest[0].Value != nil {
		t.Fatalf("expected cached sample with nil value, got %+v", latest)
	}
	if latest[0].Quality != domain.QualityBad {
		t.Fatalf("expected quality Bad, got %q", latest[0].Quality)
	}
}
