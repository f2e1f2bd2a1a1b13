package evict

import (
	"fmt"

	"github.com/kartikbazzad/bunbase/bunder-evict/internal/collab"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/metrics"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/storage"
)

// commitOutcome is what the parent-reference updater decided to do with
// the page under review: either it is finished (possibly leaving the
// page resident, for the EMPTY case), or the root split and next must be
// re-driven through the controller as a fresh dirty root (spec §4.6).
type commitOutcome struct {
	next *storage.Page
}

// commit applies the reconciliation outcome to ref (spec §4.4 step 4 and
// §4.5's ordering rule: structure fields before the state transition).
// path is the full set of refs the walker locked for this review; it is
// only consulted by the EMPTY path, which undoes every one of them rather
// than committing anything.
func (e *Evictor) commit(session *collab.Session, bt *storage.Btree, ref *storage.PageRef, page *storage.Page, isRoot, dirty bool, path []*storage.PageRef) (commitOutcome, error) {
	switch {
	case !dirty && !isRoot:
		ref.CommitDiskEmpty()
		e.countEvict(page)
		e.discard(session, page)
		return commitOutcome{}, nil

	case !dirty && isRoot:
		bt.SetRoot(nil)
		e.countEvict(page)
		bt.RootUpdate = true
		e.discard(session, page)
		return commitOutcome{}, nil

	case dirty && !isRoot:
		return e.commitDirtyNonRoot(session, ref, page, path)

	default: // dirty && isRoot
		return e.commitDirtyRoot(session, bt, page)
	}
}

// commitDirtyNonRoot implements spec §4.4's "Non-root dirty dispatch"
// table.
func (e *Evictor) commitDirtyNonRoot(session *collab.Session, ref *storage.PageRef, page *storage.Page, path []*storage.PageRef) (commitOutcome, error) {
	switch page.RecFlags {
	case storage.RecEmpty:
		// This page will be merged when its parent is evicted. Undo
		// exclusivity on everything the review locked and return OK
		// without discarding - the sole case where a successful Evict
		// leaves the candidate (and its accepted descendants) resident.
		unwindPath(path)
		return commitOutcome{}, nil

	case storage.RecReplace:
		old := ref.Addr
		if !old.IsZero() && old.OffPage {
			if err := e.deps.BlockMgr.Free(session, old); err != nil {
				return commitOutcome{}, fmt.Errorf("%w: freeing old address: %v", ErrAllocFailed, err)
			}
		}
		newAddr := page.Modify.Replace.Addr
		if newAddr.IsZero() {
			return commitOutcome{}, fmt.Errorf("%w: reconciliation produced a zero replace address", ErrAllocFailed)
		}
		ref.CommitDiskAddr(newAddr)
		e.countEvict(page)
		e.discard(session, page)
		return commitOutcome{}, nil

	case storage.RecSplit:
		ref.CommitMemSplit(page.Modify.SplitPage)
		e.countEvict(page)
		e.discard(session, page)
		return commitOutcome{}, nil

	default:
		return commitOutcome{}, invariantViolated("dirty non-root page %p has rec_flags NONE after reconciliation", page)
	}
}

// commitDirtyRoot implements spec §4.4's "Root dirty dispatch" table and
// sets up the §4.6 recursive root-split loop.
func (e *Evictor) commitDirtyRoot(session *collab.Session, bt *storage.Btree, page *storage.Page) (commitOutcome, error) {
	switch page.RecFlags {
	case storage.RecEmpty:
		if !bt.RootAddr.IsZero() {
			if err := e.deps.BlockMgr.Free(session, bt.RootAddr); err != nil {
				return commitOutcome{}, fmt.Errorf("%w: freeing old root address: %v", ErrAllocFailed, err)
			}
		}
		bt.RootAddr = storage.Address{}
		bt.SetRoot(nil)
		bt.RootUpdate = true
		e.countEvict(page)
		e.discard(session, page)
		return commitOutcome{}, nil

	case storage.RecReplace:
		if !bt.RootAddr.IsZero() {
			if err := e.deps.BlockMgr.Free(session, bt.RootAddr); err != nil {
				return commitOutcome{}, fmt.Errorf("%w: freeing old root address: %v", ErrAllocFailed, err)
			}
		}
		bt.RootAddr = page.Modify.Replace.Addr
		bt.SetRoot(nil)
		bt.RootUpdate = true
		e.countEvict(page)
		e.discard(session, page)
		return commitOutcome{}, nil

	case storage.RecSplit:
		next := page.Modify.SplitPage
		bt.RootUpdate = true
		e.countEvict(page)
		e.discard(session, page)
		// The new root has no parent to merge into; re-drive it through
		// the controller as a fresh dirty root (spec §4.6). PrepareModify
		// marks it modified and clears rec_flags ahead of the next
		// rec_write.
		next.PrepareModify()
		return commitOutcome{next: next}, nil

	default:
		return commitOutcome{}, invariantViolated("dirty root page %p has rec_flags NONE after reconciliation", page)
	}
}

// countEvict bumps the internal/unmodified-vs-modified counters of spec
// §6, mirroring cache_evict_internal/cache_evict_unmodified/
// cache_evict_modified.
func (e *Evictor) countEvict(page *storage.Page) {
	if page.Type.IsInternal() {
		metrics.CacheEvictInternal.Inc()
	}
	if page.IsDirty() {
		metrics.CacheEvictModified.Inc()
	} else {
		metrics.CacheEvictUnmodified.Inc()
	}
}
