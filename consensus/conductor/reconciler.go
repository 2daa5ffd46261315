package conductor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"andycoin/andycoin"
	"andycoin/consensus/ledger"
	"andycoin/consensus/votes"
	"andycoin/database"
)

// Reconciler is the one background task: each cycle it closes expired votes and then saves the
// ledger. Its failures are logged and retried on the next cycle, never returned to commands.
type Reconciler struct {
	ledger *ledger.Ledger
	votes  *votes.Engine
	store  *database.Store

	cycles   atomic.Uint64
	failures atomic.Uint64
}

func NewReconciler(l *ledger.Ledger, e *votes.Engine, store *database.Store) *Reconciler {
	return &Reconciler{ledger: l, votes: e, store: store}
}

// Cycle sweeps then persists once.
func (r *Reconciler) Cycle() error {
	r.cycles.Add(1)
	for _, t := range r.votes.SweepExpired(r.votes.Now()) {
		andycoin.LogCLI(fmt.Sprintf("Reconciler: closed expired vote in guild %d as %s", t.Community, t.Tally.Outcome), 4)
	}
	if err := r.store.Save(r.ledger.Snapshot()); err != nil {
		r.failures.Add(1)
		andycoin.LogCLI(fmt.Sprintf("Reconciler: save failed, retrying next cycle: %s", err), 2)
		return err
	}
	andycoin.LogCLI("Reconciler: ledger saved", 5)
	return nil
}

func (r *Reconciler) Cycles() uint64 {
	return r.cycles.Load()
}

func (r *Reconciler) Failures() uint64 {
	return r.failures.Load()
}

// Start runs Cycle every interval until terminate is closed, then runs a final cycle.
func (r *Reconciler) Start(terminate chan struct{}, wg *sync.WaitGroup, interval time.Duration) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = r.Cycle()
			case <-terminate:
				if err := r.Cycle(); err != nil {
					andycoin.LogCLI("Reconciler: final save failed, the previous copy is still on disk", 1)
				}
				andycoin.LogCLI("Reconciler has shut down", 4)
				return
			}
		}
	}()
}
