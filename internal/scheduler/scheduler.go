// Package scheduler runs the reminder/deadline scan on a fixed period.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"taskflow/internal/notify"
)

type Scheduler struct {
	cron     *cron.Cron
	scanner  *notify.Scanner
	schedule string
	jobID    cron.EntryID
}

// New creates a scheduler that runs the scanner on the given cron schedule
// (six-field spec with seconds, e.g. "0 * * * * *" for every minute).
func New(scanner *notify.Scanner, schedule string) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		scanner:  scanner,
		schedule: schedule,
	}
}

// Start registers and starts the periodic scan. A failed run is logged and
// the schedule keeps going.
func (s *Scheduler) Start() error {
	var err error
	s.jobID, err = s.cron.AddFunc(s.schedule, s.runScan)
	if err != nil {
		return fmt.Errorf("scheduling scan job: %w", err)
	}
	s.cron.Start()
	log.Printf("Scan scheduler started (%s)", s.schedule)
	return nil
}

// Stop halts the schedule. Does not interrupt a run already in flight.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		log.Println("Scan scheduler stopped")
	}
}

func (s *Scheduler) runScan() {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
	defer cancel()
	reminders, deadlines, err := s.scanner.Scan(ctx, time.Now(), false)
	if err != nil {
		log.Printf("scan run failed: %v", err)
		return
	}
	if reminders > 0 || deadlines > 0 {
		log.Printf("scan: %d reminders, %d deadlines", reminders, deadlines)
	}
}
