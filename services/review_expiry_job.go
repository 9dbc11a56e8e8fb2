package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html/template"
	"log"
	"strings"

	"peer-review-api/config"
	"peer-review-api/models"

	"gorm.io/gorm"
)

var (
	ErrReviewExpiryAlreadyRunning = errors.New("review expiry already running")
)

// DefaultReviewWindowMinutes is how long an auto-assigned review may stay
// untouched before the expiry job reclaims it.
const DefaultReviewWindowMinutes = 7 * 24 * 60

type ReviewExpiryUnitResult struct {
	UnitID   string   `json:"unit_id"`
	Expired  []string `json:"expired"`
	Failed   []string `json:"failed"`
	Eligible []string `json:"eligible,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type ReviewExpirySummary struct {
	UnitsProcessed  int                      `json:"units"`
	UnitsWithErrors int                      `json:"units_with_errors"`
	StepsExpired    int                      `json:"expired"`
	StepsFailed     int                      `json:"failed"`
	StepsEligible   int                      `json:"eligible"`
	Units           []ReviewExpiryUnitResult `json:"unit_results"`
}

type ReviewExpiryInput struct {
	UnitIDs       []string
	WindowMinutes int
	TriggerSource string
	LockName      string
	DryRun        bool
	RecordRun     bool
	ReportTo      []string
}

// ReviewExpiryJobService runs ExpireOldReviewsForUnit over many units as one
// scheduled job.
type ReviewExpiryJobService struct {
	db         *gorm.DB
	manager    *ReviewManager
	runService *ReviewExpiryRunService
	sendMail   func(to []string, subject, html string) error
}

func NewReviewExpiryJobService(db *gorm.DB, counters CounterSink) *ReviewExpiryJobService {
	if db == nil {
		db = config.DB
	}
	return &ReviewExpiryJobService{
		db:         db,
		manager:    NewReviewManager(NewGormReviewStore(db), counters),
		runService: NewReviewExpiryRunService(db),
		sendMail:   config.SendMail,
	}
}

func (s *ReviewExpiryJobService) Manager() *ReviewManager { return s.manager }

func (s *ReviewExpiryJobService) RunForAll(ctx context.Context, input *ReviewExpiryInput) (*ReviewExpirySummary, error) {
	if input == nil {
		return nil, errors.New("input is nil")
	}
	if input.WindowMinutes < 0 {
		return nil, errors.New("window_minutes must be greater than or equal to 0")
	}
	summary := &ReviewExpirySummary{Units: []ReviewExpiryUnitResult{}}

	release, err := s.acquireLock(ctx, input.LockName)
	if err != nil {
		return nil, err
	}
	if release != nil {
		defer func() {
			if relErr := release(); relErr != nil {
				log.Printf("failed to release review expiry lock: %v", relErr)
			}
		}()
	}

	unitIDs := normalizeUnitIDs(input.UnitIDs)
	if len(unitIDs) == 0 {
		unitIDs, err = s.discoverUnits(ctx)
		if err != nil {
			return nil, err
		}
	}

	var run *models.ReviewExpiryRun
	if input.RecordRun && !input.DryRun {
		run, err = s.runService.Start(ctx, input.TriggerSource, input.WindowMinutes, unitIDs)
		if err != nil {
			return nil, err
		}
	}

	var finalErr error
	if run != nil {
		defer func() {
			if finalErr != nil {
				if err := s.runService.MarkFailure(ctx, run.ID, summary, finalErr); err != nil {
					log.Printf("failed to mark review expiry run failure: %v", err)
				}
			} else {
				if err := s.runService.MarkSuccess(ctx, run.ID, summary); err != nil {
					log.Printf("failed to mark review expiry run success: %v", err)
				}
			}
		}()
	}

	for _, unitID := range unitIDs {
		result := ReviewExpiryUnitResult{UnitID: unitID, Expired: []string{}, Failed: []string{}}

		var unitErr error
		if input.DryRun {
			result.Eligible, unitErr = s.PendingKeys(ctx, input.WindowMinutes, unitID)
		} else {
			result.Expired, result.Failed, unitErr = s.manager.ExpireOldReviewsForUnit(ctx, input.WindowMinutes, unitID)
		}

		summary.StepsExpired += len(result.Expired)
		summary.StepsFailed += len(result.Failed)
		summary.StepsEligible += len(result.Eligible)
		if unitErr != nil {
			result.Error = unitErr.Error()
			summary.UnitsWithErrors++
			log.Printf("review expiry failed for unit %s: %v", unitID, unitErr)
		} else {
			summary.UnitsProcessed++
		}
		for _, key := range result.Failed {
			log.Printf("review expiry skipped step %s in unit %s", key, unitID)
		}
		summary.Units = append(summary.Units, result)

		if ctxErr := ctx.Err(); ctxErr != nil {
			finalErr = ctxErr
			return summary, ctxErr
		}
	}

	if len(input.ReportTo) > 0 && !input.DryRun {
		if err := s.sendReport(input.ReportTo, input.WindowMinutes, summary); err != nil {
			log.Printf("failed to send review expiry report: %v", err)
		}
	}

	return summary, nil
}

// PendingKeys lists the steps ExpireOldReviewsForUnit would expire now.
func (s *ReviewExpiryJobService) PendingKeys(ctx context.Context, windowMinutes int, unitID string) ([]string, error) {
	keys := []string{}
	mapper := NewReviewStepKeyMapper(s.manager.Store(), s.manager.ExpiryQuery(windowMinutes, unitID), ExpiryPageSize)
	_, err := mapper.Run(ctx, func(key string) {
		keys = append(keys, key)
	})
	return keys, err
}

func (s *ReviewExpiryJobService) discoverUnits(ctx context.Context) ([]string, error) {
	var units []string
	err := s.db.WithContext(ctx).Model(&models.ReviewStep{}).
		Distinct("unit_id").
		Where("assigner_kind = ? AND state = ? AND removed = ?", models.AssignerKindAuto, models.ReviewStateAssigned, false).
		Order("unit_id ASC").
		Pluck("unit_id", &units).Error
	if err != nil {
		return nil, err
	}
	return units, nil
}

// acquireLock takes a session-level advisory lock on a dedicated connection so
// that the release runs on the session that holds it. Dialects without
// advisory locks run unlocked.
func (s *ReviewExpiryJobService) acquireLock(ctx context.Context, lockName string) (func() error, error) {
	if strings.TrimSpace(lockName) == "" {
		return nil, nil
	}

	var acquireSQL, releaseSQL string
	switch s.db.Dialector.Name() {
	case "mysql":
		acquireSQL, releaseSQL = "SELECT GET_LOCK(?, 0)", "SELECT RELEASE_LOCK(?)"
	case "postgres":
		acquireSQL, releaseSQL = "SELECT pg_try_advisory_lock(hashtext($1))", "SELECT pg_advisory_unlock(hashtext($1))"
	default:
		log.Printf("advisory lock %q not supported on %s; running without it", lockName, s.db.Dialector.Name())
		return nil, nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, err
	}

	var ok bool
	if err := conn.QueryRowContext(ctx, acquireSQL, lockName).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if !ok {
		_ = conn.Close()
		return nil, ErrReviewExpiryAlreadyRunning
	}

	return func() error {
		defer conn.Close()
		releaseCtx, cancel := cleanupContext(ctx)
		defer cancel()
		var released sql.NullBool
		return conn.QueryRowContext(releaseCtx, releaseSQL, lockName).Scan(&released)
	}, nil
}

var reviewExpiryReportTemplate = template.Must(template.New("report").Parse(`<h2>Review expiry run</h2>
<p>Window: {{.WindowMinutes}} minutes</p>
<p>Units processed: {{.Summary.UnitsProcessed}} (errors: {{.Summary.UnitsWithErrors}})</p>
<p>Steps expired: {{.Summary.StepsExpired}}, skipped: {{.Summary.StepsFailed}}</p>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Unit</th><th>Expired</th><th>Skipped</th><th>Error</th></tr>
{{range .Summary.Units}}<tr><td>{{.UnitID}}</td><td>{{len .Expired}}</td><td>{{len .Failed}}</td><td>{{.Error}}</td></tr>
{{end}}</table>`))

func (s *ReviewExpiryJobService) sendReport(to []string, windowMinutes int, summary *ReviewExpirySummary) error {
	var body bytes.Buffer
	err := reviewExpiryReportTemplate.Execute(&body, struct {
		WindowMinutes int
		Summary       *ReviewExpirySummary
	}{windowMinutes, summary})
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Review expiry: %d expired, %d skipped", summary.StepsExpired, summary.StepsFailed)
	return s.sendMail(to, subject, body.String())
}

func normalizeUnitIDs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
