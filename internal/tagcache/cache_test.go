package tagcache

import (
	"sync"
	"testing"
	"time"

	"pumpwatch-backend/internal/domain"
)

func sample(tagID, pumpID int, value any) domain.TagSample {
	return domain.TagSample{
		TagID:     tagID,
		TagName:   "Tag",
		PumpID:    pumpID,
		Timestamp: time.Now().UTC(),
		Value:     value,
		Quality:   domain.QualityGood,
	}
}

func TestLatestReturnsMostRecentPerTag(t *testing.T) {
	c := New(time.Hour)
	c.Update(sample(1, 1, 10.0))
	c.Update(sample(2, 1, 20.0))
	c.Update(sample(1, 1, 11.0))

	got := c.Latest(1)
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if got[0].TagID != 1 || got[0].Value != 11.0 {
		t.Fatalf("expected last write for tag 1, got %+v", got[0])
	}
}

func TestLatestUnknownPump(t *testing.T) {
	c := New(time.Hour)
	c.Update(sample(1, 1, 10.0))
	if got := c.Latest(9); len(got) != 0 {
		t.Fatalf("expected empty result for unknown pump, got %d", len(got))
	}
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	c := New(time.Hour)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Update(sample(7, 1, 1.5))

	c.now = func() time.Time { return base.Add(time.Hour + time.Second) }
	if got := c.Latest(1); len(got) != 0 {
		t.Fatalf("expected expired entry to be excluded, got %d", len(got))
	}
	if got := c.AllLatest(); len(got) != 0 {
		t.Fatalf("expected expired entry to be excluded from AllLatest, got %d", len(got))
	}
}

func TestRefreshExtendsTTL(t *testing.T) {
	c := New(time.Hour)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Update(sample(7, 1, 1.0))

	c.now = func() time.Time { return base.Add(50 * time.Minute) }
	c.Update(sample(7, 1, 2.0))

	c.now = func() time.Time { return base.Add(90 * time.Minute) }
	got := c.Latest(1)
	if len(got) != 1 || got[0].Value != 2.0 {
		t.Fatalf("expected refreshed entry to survive, got %+v", got)
	}
}

func TestDanglingIndexMemberIsAbsence(t *testing.T) {
	c := New(time.Hour)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Update(sample(1, 1, 1.0))

	// Keep the pump index alive with a fresh tag while tag 1 expires.
	c.now = func() time.Time { return base.Add(55 * time.Minute) }
	c.Update(sample(2, 1, 2.0))

	c.now = func() time.Time { return base.Add(70 * time.Minute) }
	got := c.Latest(1)
	if len(got) != 1 || got[0].TagID != 2 {
		t.Fatalf("expected only the live tag, got %+v", got)
	}
}

func TestAllLatestCoversEveryPump(t *testing.T) {
	c := New(time.Hour)
	c.Update(sample(1, 1, 1.0))
	c.Update(sample(2, 2, 2.0))
	c.Update(sample(3, 3, 3.0))

	all := c.AllLatest()
	if len(all) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(all))
	}
	seen := map[int]bool{}
	for _, s := range all {
		seen[s.PumpID] = true
	}
	for _, pumpID := range []int{1, 2, 3} {
		for _, s := range c.Latest(pumpID) {
			if !seen[s.PumpID] {
				t.Fatalf("AllLatest missing pump %d", pumpID)
			}
		}
	}
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	c := New(time.Hour)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			c.Update(sample(i%16, i%4, float64(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			c.Latest(i % 4)
			c.AllLatest()
		}
	}()
	wg.Wait()
}
