package models

import (
	"strings"
	"testing"
)

func TestReviewStepKeyIsDeterministic(t *testing.T) {
	a := ReviewStepKey("unit1", "sub1", "alice", "bob")
	b := ReviewStepKey("unit1", "sub1", "alice", "bob")
	if a != b {
		t.Fatalf("expected identical keys, got %s and %s", a, b)
	}
	if !strings.HasPrefix(a, ReviewStepKeyPrefix) {
		t.Fatalf("step key %s lacks prefix %s", a, ReviewStepKeyPrefix)
	}
	if len(a) > 80 {
		t.Fatalf("step key %s does not fit its column", a)
	}
}

func TestReviewKeysDistinguishFieldBoundaries(t *testing.T) {
	cases := [][2][4]string{
		{{"ab", "c", "d", "e"}, {"a", "bc", "d", "e"}},
		{{"unit", "1", "", "x"}, {"unit1", "", "", "x"}},
		{{"u", "s", "alice", "bob"}, {"u", "s", "bob", "alice"}},
	}
	for _, tc := range cases {
		x, y := tc[0], tc[1]
		if ReviewStepKey(x[0], x[1], x[2], x[3]) == ReviewStepKey(y[0], y[1], y[2], y[3]) {
			t.Fatalf("keys collide for %q and %q", x, y)
		}
	}
	if ReviewSummaryKey("ab", "c", "d") == ReviewSummaryKey("a", "bc", "d") {
		t.Fatal("summary keys collide across field boundaries")
	}
}

func TestStepAndSummaryKeysNeverCollide(t *testing.T) {
	step := ReviewStepKey("unit1", "sub1", "alice", "")
	summary := ReviewSummaryKey("unit1", "sub1", "alice")
	if step == summary {
		t.Fatalf("step and summary share key %s", step)
	}
}

func TestStorageKeyDerivesOnce(t *testing.T) {
	step := &ReviewStep{UnitID: "unit1", SubmissionKey: "sub1", RevieweeKey: "alice", ReviewerKey: "bob"}
	want := ReviewStepKey("unit1", "sub1", "alice", "bob")
	if got := step.StorageKey(); got != want || step.Key != want {
		t.Fatalf("expected derived key %s, got %s (field %s)", want, got, step.Key)
	}

	step.ReviewerKey = "carol"
	if got := step.StorageKey(); got != want {
		t.Fatalf("assigned key must not be re-derived, got %s", got)
	}

	summary := &ReviewSummary{UnitID: "unit1", SubmissionKey: "sub1", RevieweeKey: "alice"}
	if got := summary.StorageKey(); got != ReviewSummaryKey("unit1", "sub1", "alice") {
		t.Fatalf("unexpected summary key %s", got)
	}
}
