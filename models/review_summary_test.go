package models

import "testing"

func TestReviewSummaryCountsByState(t *testing.T) {
	var s ReviewSummary
	for _, state := range []ReviewState{ReviewStateAssigned, ReviewStateAssigned, ReviewStateCompleted, ReviewStateExpired} {
		if err := s.IncrementCount(state); err != nil {
			t.Fatalf("increment %s: %v", state, err)
		}
	}

	counts := s.Counts()
	if counts[ReviewStateAssigned] != 2 || counts[ReviewStateCompleted] != 1 || counts[ReviewStateExpired] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if s.Total() != 4 {
		t.Fatalf("expected total 4, got %d", s.Total())
	}

	if err := s.DecrementCount(ReviewStateExpired); err != nil {
		t.Fatalf("decrement expired: %v", err)
	}
	if s.ExpiredCount != 0 || s.Count(ReviewStateExpired) != 0 {
		t.Fatalf("expired count not decremented: %+v", s)
	}
}

func TestReviewSummaryDecrementNeverGoesNegative(t *testing.T) {
	s := ReviewSummary{Key: "rsum1_x"}
	if err := s.DecrementCount(ReviewStateCompleted); err == nil {
		t.Fatal("expected error decrementing an empty count")
	}
	if s.CompletedCount != 0 {
		t.Fatalf("count changed on failed decrement: %d", s.CompletedCount)
	}
}

func TestReviewSummaryRejectsUnknownState(t *testing.T) {
	var s ReviewSummary
	if err := s.IncrementCount(ReviewState("archived")); err == nil {
		t.Fatal("expected error for unknown state")
	}
	if s.Count(ReviewState("archived")) != 0 {
		t.Fatal("unknown state must count as zero")
	}
	if _, err := ParseReviewState("archived"); err == nil {
		t.Fatal("expected parse error")
	}
	if state, err := ParseReviewState("expired"); err != nil || state != ReviewStateExpired {
		t.Fatalf("unexpected parse result %s, %v", state, err)
	}
}
