/*
sweeper.go - Background digest backfill sweeper

PURPOSE:
  Periodically scans for committed transactions that are missing their
  integrity digest (the attach step after commit is best-effort) and
  recomputes them from the persisted fields.

DESIGN:
  - Runs a background goroutine with configurable sweep interval
  - Each sweep processes at most BatchLimit transactions
  - A transaction whose digest was attached between the scan and the
    recompute is simply overwritten with the identical value

CONFIGURATION:
  - SweepInterval: How often to sweep (default: 1 minute)
  - BatchLimit:    Max transactions per sweep (default: 100)
  - Enabled:       Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewDigestSweeper(service)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - ledger/service.go: BackfillDigests
  - ledger/fingerprint.go: Digest computation
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/stockroom/inventory-ledger/ledger"
)

// DigestSweeper backfills missing transaction digests in the background.
type DigestSweeper struct {
	Service       *ledger.Service
	SweepInterval time.Duration
	BatchLimit    int
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewDigestSweeper creates a new sweeper with default settings.
func NewDigestSweeper(service *ledger.Service) *DigestSweeper {
	return &DigestSweeper{
		Service:       service,
		SweepInterval: 1 * time.Minute,
		BatchLimit:    100,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the sweeper.
func (ds *DigestSweeper) Start() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if !ds.Enabled {
		log.Println("[Sweeper] Disabled, not starting")
		return
	}

	ds.ticker = time.NewTicker(ds.SweepInterval)
	ds.wg.Add(1)

	go ds.run()

	log.Printf("[Sweeper] Started with sweep interval: %v", ds.SweepInterval)
}

// Stop stops the sweeper.
func (ds *DigestSweeper) Stop() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.ticker != nil {
		ds.ticker.Stop()
		close(ds.stop)
		ds.wg.Wait()
		log.Println("[Sweeper] Stopped")
	}
}

func (ds *DigestSweeper) run() {
	defer ds.wg.Done()

	// Run immediately on start
	ds.sweep()

	for {
		select {
		case <-ds.ticker.C:
			ds.sweep()
		case <-ds.stop:
			return
		}
	}
}

func (ds *DigestSweeper) sweep() {
	ctx := context.Background()

	filled, err := ds.Service.BackfillDigests(ctx, ds.BatchLimit)
	if err != nil {
		log.Printf("[Sweeper] Error backfilling digests: %v", err)
		return
	}
	if filled > 0 {
		log.Printf("[Sweeper] Backfilled %d digest(s)", filled)
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (ds *DigestSweeper) RunNow() {
	ds.sweep()
}
