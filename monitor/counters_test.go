package monitor

import (
	"sync"
	"testing"
)

func TestCountersIncrementConcurrently(t *testing.T) {
	r := NewCounters()
	r.Register("events", "number of events")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Increment("events", 1)
			}
		}()
	}
	wg.Wait()

	if got := r.Value("events"); got != 5000 {
		t.Fatalf("expected 5000, got %d", got)
	}
}

func TestCountersIgnoreNonPositiveAmounts(t *testing.T) {
	r := NewCounters()
	r.Increment("skips", 3)
	r.Increment("skips", 0)
	r.Increment("skips", -2)

	if got := r.Value("skips"); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestCountersSnapshotSortedWithDescriptions(t *testing.T) {
	r := NewCounters()
	r.Increment("b", 1)
	r.Register("a", "first")
	r.Register("b", "second")

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 counters, got %d", len(snap))
	}
	if snap[0].Name != "a" || snap[0].Value != 0 || snap[0].Description != "first" {
		t.Fatalf("unexpected first counter: %+v", snap[0])
	}
	if snap[1].Name != "b" || snap[1].Value != 1 || snap[1].Description != "second" {
		t.Fatalf("unexpected second counter: %+v", snap[1])
	}
	if got := r.Value("missing"); got != 0 {
		t.Fatalf("expected 0 for unknown counter, got %d", got)
	}
}
