package evict

import (
	"fmt"

	"github.com/kartikbazzad/bunbase/bunder-evict/internal/collab"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/storage"
)

// EvictAll walks the tree bottom-up and calls Evict with Single on every
// resident page, flushing the whole cache on engine shutdown.
//
// Grounded on the teacher's BufferPool.FlushAllPages/Close pattern
// (bunder/internal/storage/buffer_pool.go), generalized from "flush every
// dirty page, then sync" to "evict and discard the whole cache": leaves
// are evicted first so that by the time an internal page's own Evict call
// reviews its children, only EMPTY/SPLIT/SPLIT_MERGE survivors (left
// resident by a child's own Evict call) or Disk children remain - exactly
// the shapes the subtree walker already knows how to merge.
func (e *Evictor) EvictAll(session *collab.Session, bt *storage.Btree) error {
	root := bt.RootPage()
	if root == nil {
		return nil
	}
	if err := e.evictChildrenFirst(session, bt, root); err != nil {
		return fmt.Errorf("evict all: %w", err)
	}
	if root = bt.RootPage(); root == nil {
		return nil
	}
	return e.Evict(session, bt, root, Single)
}

func (e *Evictor) evictChildrenFirst(session *collab.Session, bt *storage.Btree, page *storage.Page) error {
	if !page.Type.IsInternal() {
		return nil
	}
	for _, child := range page.ChildSlots() {
		if child.Load() == storage.Disk {
			continue
		}
		childPage := child.Page
		if childPage == nil {
			continue
		}
		if err := e.evictChildrenFirst(session, bt, childPage); err != nil {
			return err
		}
		// childPage may have been replaced by a split (CommitMemSplit)
		// or removed (CommitDiskEmpty/CommitDiskAddr) by a sibling's
		// discard; re-read the live child through the ref rather than
		// trusting the snapshot taken above.
		if child.Load() != storage.Mem || child.Page == nil {
			continue
		}
		if err := e.Evict(session, bt, child.Page, Single); err != nil {
			return err
		}
	}
	return nil
}
