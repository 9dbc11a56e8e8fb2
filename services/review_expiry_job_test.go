package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"peer-review-api/models"
)

type capturedMail struct {
	to      []string
	subject string
	html    string
}

func newTestExpiryJob(t *testing.T) (*ReviewExpiryJobService, *testClock, *recordingCounters, *[]capturedMail) {
	t.Helper()
	counters := newRecordingCounters()
	job := NewReviewExpiryJobService(newSQLiteGormDB(t), counters)
	clock := newTestClock()
	job.Manager().WithClock(clock.Now)

	mails := &[]capturedMail{}
	job.sendMail = func(to []string, subject, html string) error {
		*mails = append(*mails, capturedMail{to: to, subject: subject, html: html})
		return nil
	}
	return job, clock, counters, mails
}

func TestRunForAllDiscoversUnitsAndRecordsRun(t *testing.T) {
	job, clock, _, mails := newTestExpiryJob(t)
	store := job.Manager().Store()
	old := clock.Now().Add(-3 * time.Hour)

	seedStep(t, store, autoStep("unit-b", "sub1", "alice", "bob", old))
	seedStep(t, store, autoStep("unit-a", "sub2", "carol", "dave", old))
	seedStep(t, store, autoStep("unit-a", "sub3", "erin", "frank", clock.Now()))

	summary, err := job.RunForAll(context.Background(), &ReviewExpiryInput{
		WindowMinutes: 60,
		TriggerSource: "test",
		RecordRun:     true,
		ReportTo:      []string{"ops@example.com"},
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.UnitsProcessed != 2 || summary.StepsExpired != 2 || summary.StepsFailed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Units[0].UnitID != "unit-a" || summary.Units[1].UnitID != "unit-b" {
		t.Fatalf("expected units in discovery order, got %+v", summary.Units)
	}

	var runs []models.ReviewExpiryRun
	if err := job.db.Find(&runs).Error; err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs))
	}
	run := runs[0]
	if run.Status != models.ReviewExpiryRunStatusSuccess || run.StepsExpired != 2 || run.UnitsProcessed != 2 || run.FinishedAt == nil {
		t.Fatalf("unexpected run record: %+v", run)
	}
	if run.TriggerSource != "test" || len(run.UnitIDs) != 2 {
		t.Fatalf("unexpected run metadata: %+v", run)
	}

	if len(*mails) != 1 {
		t.Fatalf("expected one report, got %d", len(*mails))
	}
	report := (*mails)[0]
	if report.to[0] != "ops@example.com" || !strings.Contains(report.subject, "2 expired") || !strings.Contains(report.html, "unit-a") {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestRunForAllDryRunLeavesStepsUntouched(t *testing.T) {
	job, clock, counters, mails := newTestExpiryJob(t)
	store := job.Manager().Store()
	key := seedStep(t, store, autoStep("unit1", "sub1", "alice", "bob", clock.Now().Add(-2*time.Hour)))

	summary, err := job.RunForAll(context.Background(), &ReviewExpiryInput{
		UnitIDs:       []string{" unit1 ", "unit1", ""},
		WindowMinutes: 60,
		DryRun:        true,
		RecordRun:     true,
		ReportTo:      []string{"ops@example.com"},
	})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if len(summary.Units) != 1 || summary.StepsEligible != 1 || summary.Units[0].Eligible[0] != key {
		t.Fatalf("unexpected dry run summary: %+v", summary)
	}
	if summary.StepsExpired != 0 {
		t.Fatalf("dry run expired steps: %+v", summary)
	}
	if step := mustStep(t, store, key); step.State != models.ReviewStateAssigned {
		t.Fatalf("dry run changed step: %+v", step)
	}

	var runs int64
	if err := job.db.Model(&models.ReviewExpiryRun{}).Count(&runs).Error; err != nil {
		t.Fatalf("count runs: %v", err)
	}
	if runs != 0 || len(*mails) != 0 {
		t.Fatalf("dry run must not record runs or send reports: runs=%d mails=%d", runs, len(*mails))
	}
	if counters.get(CounterExpireReviewStart) != 0 {
		t.Fatal("dry run must not call ExpireReview")
	}
}

func TestRunForAllRecordsFailureOnCancel(t *testing.T) {
	job, clock, _, _ := newTestExpiryJob(t)
	seedStep(t, job.Manager().Store(), autoStep("unit1", "sub1", "alice", "bob", clock.Now().Add(-2*time.Hour)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := job.RunForAll(ctx, &ReviewExpiryInput{
		UnitIDs:       []string{"unit1"},
		WindowMinutes: 60,
		RecordRun:     true,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if summary == nil || summary.UnitsWithErrors != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	var run models.ReviewExpiryRun
	if err := job.db.First(&run).Error; err != nil {
		t.Fatalf("load run: %v", err)
	}
	if run.Status != models.ReviewExpiryRunStatusFailed || run.ErrorMessage == nil || !strings.Contains(*run.ErrorMessage, "canceled") {
		t.Fatalf("unexpected run record: %+v", run)
	}
}

func TestRunForAllRejectsNegativeWindow(t *testing.T) {
	job, _, _, _ := newTestExpiryJob(t)
	if _, err := job.RunForAll(context.Background(), &ReviewExpiryInput{WindowMinutes: -5}); err == nil {
		t.Fatal("expected error for negative window")
	}
	if _, err := job.RunForAll(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil input")
	}
}

func TestReviewExpiryRunServiceGetUnknownRun(t *testing.T) {
	runs := NewReviewExpiryRunService(newSQLiteGormDB(t))
	if _, err := runs.Get(context.Background(), 42); !errors.Is(err, ErrReviewExpiryRunNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := runs.MarkSuccess(context.Background(), 42, nil); !errors.Is(err, ErrReviewExpiryRunNotFound) {
		t.Fatalf("expected not found on finish, got %v", err)
	}
}
