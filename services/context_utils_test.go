package services

import (
	"context"
	"testing"
	"time"
)

type ctxKey struct{}

func TestCleanupContextOutlivesCanceledParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "run-7"))
	cancel()

	ctx, stop := cleanupContext(parent)
	defer stop()
	if err := ctx.Err(); err != nil {
		t.Fatalf("cleanup context inherited cancellation: %v", err)
	}
	if ctx.Value(ctxKey{}) != "run-7" {
		t.Fatal("cleanup context lost parent values")
	}
	deadline, ok := ctx.Deadline()
	if !ok || time.Until(deadline) > cleanupTimeout {
		t.Fatalf("expected a deadline within %s, got %v (set=%t)", cleanupTimeout, deadline, ok)
	}
}
