/*
scheduler.go - Automated spreadsheet sync scheduler

PURPOSE:
  Periodically re-syncs the directory from the source spreadsheets so the
  dashboard tracks what the sales team edits without anyone pressing the
  sync button.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Each tick is one full Importer.Sync: all-or-nothing, idempotent
  - A failed tick logs and waits for the next one; the previous directory
    stays in place

CONFIGURATION:
  - Interval: How often to sync (default: 1 hour)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewSyncScheduler(imp)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - importer/importer.go: Sync semantics
  - handlers.go: SyncImport endpoint (manual sync)
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/atlas/commission-engine/importer"
)

// SyncScheduler re-runs the spreadsheet import on an interval.
type SyncScheduler struct {
	Importer *importer.Importer
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSyncScheduler creates a new scheduler.
func NewSyncScheduler(imp *importer.Importer) *SyncScheduler {
	return &SyncScheduler{
		Importer: imp,
		Interval: 1 * time.Hour,
		Enabled:  true,
		stop:     make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.Importer == nil {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)
	go s.run()

	log.Printf("[Scheduler] Started with sync interval: %v", s.Interval)
}

// Stop halts the scheduler and waits for any in-flight sync.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil

	log.Println("[Scheduler] Stopped")
}

func (s *SyncScheduler) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stop:
			return
		case <-s.ticker.C:
			s.syncOnce()
		}
	}
}

func (s *SyncScheduler) syncOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := s.Importer.Sync(ctx)
	if err != nil {
		log.Printf("[Scheduler] Sync failed: %v", err)
		return
	}
	log.Printf("[Scheduler] Synced %d partners, %d subscriptions, %d plans, %d new liquidations",
		result.Partners, result.Subscriptions, result.Plans, result.NewLiquidations)
}
