package evict

import (
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/collab"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/logger"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/storage"
)

// discard implements the recursive discarder of spec §4.7: given a
// freshly-evicted page, recursively destroy every child whose state is
// not Disk - these were merged into it during reconciliation and have no
// separate existence on disk - then destroy the page itself.
//
// Subpage teardown fans out onto the discard pool (SPEC_FULL.md §C, the
// ants-backed internal/discardpool) so a deep merged subtree doesn't make
// the evicting session pay for every child's page_out/track_wrapup one at
// a time; discard still blocks until the whole subtree is torn down
// before returning, so it remains synchronous from Evict's point of view.
func (e *Evictor) discard(session *collab.Session, page *storage.Page) {
	if page == nil {
		return
	}

	if page.Type.IsInternal() {
		batch := e.deps.Discard.Batch()
		for _, child := range page.ChildSlots() {
			if child.Load() == storage.Disk {
				continue
			}
			childPage := child.Page
			if childPage == nil {
				continue
			}
			batch.Submit(func() { e.discard(session, childPage) })
		}
		batch.Wait()
	}

	e.destroy(session, page)
}

// destroy finalizes tracked auxiliary objects (iff the page was ever
// dirtied) and returns the page to the allocator, per spec §4.7's
// "Destruction: run track_wrapup on tracked resources (iff modify is
// non-null), then return the page to the allocator."
func (e *Evictor) destroy(session *collab.Session, page *storage.Page) {
	if page.Modify != nil {
		if err := e.deps.Tracker.TrackWrapup(session, page, true); err != nil {
			logger.Get().Error("track_wrapup failed during discard", "error", err)
		}
	}
	if err := e.deps.Allocator.PageOut(session, page); err != nil {
		logger.Get().Error("page_out failed during discard", "error", err)
	}
}
