package models

import "fmt"

// ReviewState is the lifecycle state of a single review step.
type ReviewState string

const (
	ReviewStateAssigned  ReviewState = "assigned"
	ReviewStateCompleted ReviewState = "completed"
	ReviewStateExpired   ReviewState = "expired"
)

// ReviewStates lists every state a summary keeps a count for.
var ReviewStates = []ReviewState{
	ReviewStateAssigned,
	ReviewStateCompleted,
	ReviewStateExpired,
}

func (s ReviewState) Valid() bool {
	switch s {
	case ReviewStateAssigned, ReviewStateCompleted, ReviewStateExpired:
		return true
	}
	return false
}

func (s ReviewState) String() string { return string(s) }

// AssignerKind records who created a review step assignment.
type AssignerKind string

const (
	AssignerKindHuman AssignerKind = "human"
	AssignerKindAuto  AssignerKind = "auto"
)

func (k AssignerKind) Valid() bool {
	return k == AssignerKindHuman || k == AssignerKindAuto
}

// ParseReviewState converts an external value into a ReviewState.
func ParseReviewState(raw string) (ReviewState, error) {
	s := ReviewState(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown review state %q", raw)
	}
	return s, nil
}
