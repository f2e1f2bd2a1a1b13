package evict

import (
	"runtime"

	"github.com/kartikbazzad/bunbase/bunder-evict/internal/hazard"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/logger"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/metrics"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/storage"
)

// requestExclusive implements hazard_exclusive(ref, force) from spec §4.2:
//
//  1. Precondition: ref.State in {Mem, Locked}.
//  2. Store ref.State = Locked.
//  3. Take a hazard snapshot.
//  4. If ref.Page is not in the snapshot: success.
//  5. Else if force: yield and retry from 3, up to waitBudget iterations.
//  6. Else: restore ref.State = Mem and fail with ErrBusy.
//
// The ordering - state-store before snapshot-load here, hazard-store
// before state-load on the reader - guarantees that any reader that will
// successfully publish a hazard on this page does so after we store
// Locked, and therefore observes Locked and backs out (spec §5).
func requestExclusive(ref *storage.PageRef, reg hazard.Registry, force bool, waitBudget int) error {
	ref.ForceLocked()

	for attempt := 0; ; attempt++ {
		snap := reg.Snapshot()
		if !snap.Has(ref.Page) {
			return nil
		}
		// Every individual conflict observed while walking the subtree is
		// its own rec_hazard sample (spec §6); cache_evict_hazard, counted
		// once per aborted reviewSubtree call, is the coarser of the two.
		// WAIT-mode retries on the same page are not counted again.
		if attempt == 0 {
			metrics.RecHazard.Inc()
		}
		if !force {
			ref.Restore(storage.Mem)
			return ErrBusy
		}
		if waitBudget > 0 && attempt >= waitBudget {
			ref.Restore(storage.Mem)
			logger.Get().Debug("wait-mode hazard spin exhausted budget, giving up",
				"budget", waitBudget, "page_id", storage.PagePtr(ref.Page))
			return ErrWaitExhausted
		}
		runtime.Gosched()
	}
}
