// Command review-expiry expires machine-assigned reviews that have been left
// untouched for longer than the review window.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"peer-review-api/config"
	"peer-review-api/monitor"
	"peer-review-api/services"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logFile, _ := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}

	config.InitDB()

	var (
		unitIDsRaw    string
		windowMinutes int
		dryRun        bool
		trigger       string
		lockName      string
	)

	flag.StringVar(&unitIDsRaw, "unit-ids", "", "comma-separated list of unit IDs to process (default: every unit with auto-assigned reviews)")
	flag.IntVar(&windowMinutes, "window-minutes", defaultWindowMinutes(), "minutes an auto-assigned review may stay untouched")
	flag.BoolVar(&dryRun, "dry-run", false, "list eligible reviews without expiring them")
	flag.StringVar(&trigger, "trigger", "cli", "trigger source label stored in review_expiry_runs")
	flag.StringVar(&lockName, "lock-name", "review_expiry_job", "advisory lock name (empty to disable)")
	flag.Parse()

	if windowMinutes < 0 {
		log.Fatal("window-minutes must be greater than or equal to 0")
	}

	var unitIDs []string
	if strings.TrimSpace(unitIDsRaw) != "" {
		unitIDs = strings.Split(unitIDsRaw, ",")
	}

	var reportTo []string
	for _, addr := range strings.Split(os.Getenv("REVIEW_EXPIRY_REPORT_TO"), ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			reportTo = append(reportTo, addr)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services.RegisterReviewCounters(monitor.Default)
	job := services.NewReviewExpiryJobService(nil, monitor.Default)
	summary, err := job.RunForAll(ctx, &services.ReviewExpiryInput{
		UnitIDs:       unitIDs,
		WindowMinutes: windowMinutes,
		TriggerSource: trigger,
		LockName:      lockName,
		DryRun:        dryRun,
		RecordRun:     !dryRun,
		ReportTo:      reportTo,
	})
	if err != nil {
		if errors.Is(err, services.ErrReviewExpiryAlreadyRunning) {
			log.Fatal("review expiry already running (advisory lock held)")
		}
		if summary == nil {
			log.Fatalf("review expiry failed: %v", err)
		}
		log.Printf("review expiry stopped early: %v", err)
	}

	fmt.Printf("Units processed: %d (errors: %d)\n", summary.UnitsProcessed, summary.UnitsWithErrors)
	if dryRun {
		fmt.Printf("Reviews eligible for expiry: %d\n", summary.StepsEligible)
		for _, unit := range summary.Units {
			for _, key := range unit.Eligible {
				fmt.Printf("  %s %s\n", unit.UnitID, key)
			}
		}
		fmt.Println("Dry run complete. No database changes were made.")
	} else {
		fmt.Printf("Reviews expired: %d, skipped: %d\n", summary.StepsExpired, summary.StepsFailed)
		for _, c := range monitor.Default.Snapshot() {
			if c.Value > 0 {
				log.Printf("counter %s = %d", c.Name, c.Value)
			}
		}
	}

	if err != nil || summary.UnitsWithErrors > 0 || summary.StepsFailed > 0 {
		os.Exit(2)
	}
}

func defaultWindowMinutes() int {
	raw := strings.TrimSpace(os.Getenv("REVIEW_WINDOW_MINUTES"))
	if raw == "" {
		return services.DefaultReviewWindowMinutes
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes < 0 {
		log.Printf("invalid REVIEW_WINDOW_MINUTES %q, using %d", raw, services.DefaultReviewWindowMinutes)
		return services.DefaultReviewWindowMinutes
	}
	return minutes
}
