// Package evict implements the page eviction and reconciliation-commit
// core of the B-tree engine: the subtree exclusivity walker, the
// eviction controller, the parent-reference updater, and the recursive
// discarder described in spec.md / SPEC_FULL.md.
package evict

import (
	"context"
	"fmt"

	"github.com/kartikbazzad/bunbase/bunder-evict/internal/collab"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/config"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/discardpool"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/hazard"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/logger"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/storage"
)

// Flags is the bitmask accepted by Evict, matching spec §6.
type Flags uint8

const (
	// Single asserts the caller already holds the tree in a quiescent
	// state (e.g. engine close); hazard acquisition and unlocking are
	// skipped entirely.
	Single Flags = 1 << iota
	// Wait spins on hazard conflicts instead of returning ErrBusy.
	Wait
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

// Deps bundles every external collaborator the controller consumes but
// does not implement (spec §1's "Out of scope" list and §6's "Consumed
// external operations").
type Deps struct {
	Reconciler collab.Reconciler
	BlockMgr   collab.BlockManager
	Allocator  collab.PageAllocator
	Tracker    collab.Tracker
	Clock      collab.Clock
	Hazards    hazard.Registry
	Discard    *discardpool.Pool
}

// Evictor runs the eviction controller of spec §4.4 against one Btree.
type Evictor struct {
	deps Deps
	cfg  config.Config
}

// NewEvictor builds an Evictor from its collaborators and tuning config.
func NewEvictor(deps Deps, cfg config.Config) *Evictor {
	return &Evictor{deps: deps, cfg: cfg}
}

// Evict runs the controller of spec §4.4 against page, within bt.
//
// Root handling: bt.RootPage() == page identifies the root case; the
// root's exclusivity is tracked through bt.Root (a synthetic PageRef -
// see storage.Btree) rather than through page.Ref, since the root has no
// parent slot.
func (e *Evictor) Evict(session *collab.Session, bt *storage.Btree, page *storage.Page, flags Flags) error {
	for {
		isRoot := bt.RootPage() == page
		ref := page.Ref
		if isRoot {
			ref = bt.Root
		}
		if ref == nil {
			return invariantViolated("page %p has neither a parent ref nor root status", page)
		}

		// Step 1 (spec §4.4): SPLIT_MERGE pages have no standalone
		// on-disk form and are never evicted alone (I4) - only as a
		// byproduct of evicting an ancestor via discard.
		if page.RecFlags == storage.RecSplitMerge {
			page.ReadGen = e.deps.Clock.Next()
			if !flags.has(Single) {
				ref.Restore(storage.Mem)
			}
			return nil
		}

		m := mode{
			single:     flags.has(Single),
			wait:       flags.has(Wait),
			waitBudget: e.cfg.WaitYieldBudget,
			registry:   e.deps.Hazards,
		}

		path, err := reviewSubtree(ref, m)
		if err != nil {
			return err
		}

		dirty := page.IsDirty()
		if dirty {
			if err := e.deps.Reconciler.Write(session, page, false); err != nil {
				if !m.single {
					unwindPath(path)
				}
				return fmt.Errorf("%w: %v", ErrReconcileFailed, err)
			}
		}

		outcome, err := e.commit(session, bt, ref, page, isRoot, dirty, path)
		if err != nil {
			if !m.single {
				unwindPath(path)
			}
			return err
		}

		if outcome.next == nil {
			return nil
		}

		// §4.6: the root split into a new internal page with no parent
		// to merge into. Install it as the resident root and loop,
		// re-driving it through the controller as a fresh dirty root;
		// this terminates once reconciliation yields REPLACE instead of
		// SPLIT (spec §8, P5).
		bt.SetRoot(outcome.next)
		page = outcome.next
		logger.WithSession(context.Background(), session.ID).Debug("root split, re-reconciling new root")
	}
}
