package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"peer-review-api/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingCounters struct {
	mu     sync.Mutex
	values map[string]int64
}

func newRecordingCounters() *recordingCounters {
	return &recordingCounters{values: make(map[string]int64)}
}

func (r *recordingCounters) Increment(name string, amount int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[name] += amount
}

func (r *recordingCounters) get(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[name]
}

func newSQLiteGormDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true, Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := NewGormReviewStore(db).AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate review tables: %v", err)
	}
	if err := NewReviewExpiryRunService(db).AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate run table: %v", err)
	}
	if err := NewContentService(db).AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate content tables: %v", err)
	}
	return db
}

// forEachStore runs fn against the in-memory store and the SQLite-backed gorm
// store.
func forEachStore(t *testing.T, fn func(t *testing.T, store ReviewStore)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryReviewStore())
	})
	t.Run("gorm", func(t *testing.T) {
		fn(t, NewGormReviewStore(newSQLiteGormDB(t)))
	})
}

func newTestManager(store ReviewStore) (*ReviewManager, *testClock, *recordingCounters) {
	clock := newTestClock()
	counters := newRecordingCounters()
	return NewReviewManager(store, counters).WithClock(clock.Now), clock, counters
}

func allSteps(t *testing.T, store ReviewStore) []models.ReviewStep {
	t.Helper()
	switch s := store.(type) {
	case *MemoryReviewStore:
		s.mu.Lock()
		defer s.mu.Unlock()
		steps := make([]models.ReviewStep, 0, len(s.steps))
		for _, step := range s.steps {
			steps = append(steps, step)
		}
		return steps
	case *GormReviewStore:
		var steps []models.ReviewStep
		if err := s.db.Find(&steps).Error; err != nil {
			t.Fatalf("failed to list steps: %v", err)
		}
		return steps
	}
	t.Fatalf("unsupported store %T", store)
	return nil
}

func mustStep(t *testing.T, store ReviewStore, key string) *models.ReviewStep {
	t.Helper()
	step, err := store.GetStep(context.Background(), key)
	if err != nil {
		t.Fatalf("get step %s: %v", key, err)
	}
	if step == nil {
		t.Fatalf("step %s not found", key)
	}
	return step
}

func mustSummary(t *testing.T, store ReviewStore, key string) *models.ReviewSummary {
	t.Helper()
	summary, err := store.GetSummary(context.Background(), key)
	if err != nil {
		t.Fatalf("get summary %s: %v", key, err)
	}
	if summary == nil {
		t.Fatalf("summary %s not found", key)
	}
	return summary
}

func assertCounts(t *testing.T, summary *models.ReviewSummary, assigned, completed, expired int64) {
	t.Helper()
	if summary.AssignedCount != assigned || summary.CompletedCount != completed || summary.ExpiredCount != expired {
		t.Fatalf("unexpected counts: assigned=%d completed=%d expired=%d, want %d/%d/%d",
			summary.AssignedCount, summary.CompletedCount, summary.ExpiredCount, assigned, completed, expired)
	}
}

// assertSummaryConsistent checks that every per-state count of the summary
// matches the non-removed steps that reference it.
func assertSummaryConsistent(t *testing.T, store ReviewStore, summaryKey string) {
	t.Helper()
	summary := mustSummary(t, store, summaryKey)
	want := map[models.ReviewState]int64{}
	for _, step := range allSteps(t, store) {
		if step.ReviewSummaryKey != summaryKey || step.Removed {
			continue
		}
		want[step.State]++
	}
	for _, state := range models.ReviewStates {
		if got := summary.Count(state); got != want[state] {
			t.Fatalf("summary %s: %s count is %d, active steps say %d", summaryKey, state, got, want[state])
		}
	}
}

// seedStep writes a step and its summary count directly, standing in for
// flows outside the manager such as automatic assignment and completion.
func seedStep(t *testing.T, store ReviewStore, step models.ReviewStep) string {
	t.Helper()
	var key string
	err := store.Transaction(context.Background(), func(tx ReviewTx) error {
		summaryKey := models.ReviewSummaryKey(step.UnitID, step.SubmissionKey, step.RevieweeKey)
		summary, err := tx.GetSummary(summaryKey)
		if err != nil {
			return err
		}
		if summary == nil {
			summary = &models.ReviewSummary{
				UnitID:        step.UnitID,
				SubmissionKey: step.SubmissionKey,
				RevieweeKey:   step.RevieweeKey,
				CreateDate:    step.CreateDate,
				ChangeDate:    step.ChangeDate,
			}
		}
		if !step.Removed {
			if err := summary.IncrementCount(step.State); err != nil {
				return err
			}
		}
		step.ReviewSummaryKey = summaryKey
		keys, err := tx.Put(&step, summary)
		if err != nil {
			return err
		}
		key = keys[0]
		return nil
	})
	if err != nil {
		t.Fatalf("seed step: %v", err)
	}
	return key
}

func autoStep(unitID, submissionKey, revieweeKey, reviewerKey string, changed time.Time) models.ReviewStep {
	return models.ReviewStep{
		UnitID:        unitID,
		SubmissionKey: submissionKey,
		RevieweeKey:   revieweeKey,
		ReviewerKey:   reviewerKey,
		State:         models.ReviewStateAssigned,
		AssignerKind:  models.AssignerKindAuto,
		CreateDate:    changed,
		ChangeDate:    changed,
	}
}
