package evict

import (
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/hazard"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/metrics"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/storage"
)

// mode bundles the per-call knobs the walker and the exclusive-request
// helper need: whether hazard acquisition happens at all (SINGLE) and how
// patient it is when it does (WAIT), plus the registry and wait budget
// that requestExclusive spins against.
type mode struct {
	single     bool
	wait       bool
	waitBudget int
	registry   hazard.Registry
}

// reviewSubtree implements the subtree exclusivity walker of spec §4.3: a
// depth-first acquisition of LOCKED status on ref and every in-memory
// descendant that review decides can be merged into it.
//
// On success it returns the full DFS pre-order list of refs it locked
// (ref itself first), the "reviewPath" of SPEC_FULL.md §D.5 that lets the
// caller unwind as a plain reverse walk instead of a second tree
// traversal. On failure it has already unwound every lock it took (spec
// §4.4 step 2: "the walker has already unwound") and returns a nil path.
func reviewSubtree(ref *storage.PageRef, m mode) ([]*storage.PageRef, error) {
	path, depth, err := reviewNode(ref, true, m, nil, 0)
	metrics.WalkerDepth.Observe(float64(depth))
	if err != nil {
		unwindPath(path)
		if err == ErrBusy {
			metrics.CacheEvictHazard.Inc()
		}
		return nil, err
	}
	return path, nil
}

// reviewNode locks ref (unless root, the mergeability test of §4.3 does
// not apply to it - that test governs whether a *child* can be folded
// into its parent, not whether the candidate page itself is evictable),
// appends it to path, and recurses into its children in sibling order
// when it is internal.
func reviewNode(ref *storage.PageRef, isRoot bool, m mode, path []*storage.PageRef, depth int) ([]*storage.PageRef, int, error) {
	if err := lockRef(ref, m); err != nil {
		return path, depth, err
	}
	path = append(path, ref)

	if !isRoot && !mergeable(ref.Page) {
		return path, depth, ErrUnmergeable
	}

	page := ref.Page
	if page == nil || !page.Type.IsInternal() {
		return path, depth, nil
	}

	maxDepth := depth
	for _, child := range page.ChildSlots() {
		switch child.Load() {
		case storage.Disk:
			// Not resident; cannot be merged, does not block eviction.
			continue
		case storage.Locked, storage.Reading:
			return path, maxDepth, ErrBusy
		case storage.Mem:
			var childDepth int
			var err error
			path, childDepth, err = reviewNode(child, false, m, path, depth+1)
			if err != nil {
				return path, maxDepth, err
			}
			if childDepth > maxDepth {
				maxDepth = childDepth
			}
		}
	}
	return path, maxDepth, nil
}

// lockRef acquires exclusivity on ref, skipping the hazard check entirely
// under SINGLE mode (spec §6: "caller guarantees no concurrent readers;
// hazard and unlock steps are skipped").
func lockRef(ref *storage.PageRef, m mode) error {
	if m.single {
		ref.ForceLocked()
		return nil
	}
	return requestExclusive(ref, m.registry, m.wait, m.waitBudget)
}

// mergeable implements spec §4.3's per-child acceptability test, run once
// the child is held Locked:
//
//	SPLIT_MERGE            -> acceptable regardless of dirty/clean.
//	(SPLIT or EMPTY) clean -> acceptable.
//	(SPLIT or EMPTY) dirty -> not acceptable (parent's reconciliation
//	                          would not know the child's on-disk shape).
//	anything else           -> not acceptable.
func mergeable(page *storage.Page) bool {
	switch page.RecFlags {
	case storage.RecSplitMerge:
		return true
	case storage.RecSplit, storage.RecEmpty:
		return !page.IsDirty()
	default:
		return false
	}
}

// unwindPath releases every ref in path back to Mem in reverse
// acquisition order, the plain-slice-reversal unwind of SPEC_FULL.md §D.5
// standing in for a second DFS over excl_clear (spec §4.8). Invariant I5
// requires exactly this order: reverse depth-first, so a page is never
// left Locked while an ancestor it depends on has already been restored.
func unwindPath(path []*storage.PageRef) {
	for i := len(path) - 1; i >= 0; i-- {
		path[i].Restore(storage.Mem)
	}
}
