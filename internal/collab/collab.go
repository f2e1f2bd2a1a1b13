// Package collab declares the external collaborators the eviction core
// consumes but does not implement (spec §1, "Out of scope"): the
// reconciliation writer, the block manager, the page allocator/destructor,
// tracked-object cleanup, and the cache's read-generation clock. Each is a
// small interface so production code can supply the real subsystem and
// tests can supply a deterministic fake (internal/evicttest).
package collab

import "github.com/kartikbazzad/bunbase/bunder-evict/internal/storage"

// Session identifies the caller of Evict and is threaded through to every
// collaborator call, mirroring the WT_SESSION handle the spec's
// signatures all carry.
type Session struct {
	ID int
}

// Reconciler turns a dirty page into one or more on-disk images,
// populating page.RecFlags and page.Modify. It is the "write(page)"
// collaborator of spec §1 and §4.4 step 3.
type Reconciler interface {
	Write(session *Session, page *storage.Page, bulkHint bool) error
}

// BlockManager releases on-disk space. It is "bm_free(addr)" in spec §1.
type BlockManager interface {
	Free(session *Session, addr storage.Address) error
}

// PageAllocator destroys an evicted page's in-memory representation. It
// is "page_out" in spec §1 and §4.7.
type PageAllocator interface {
	PageOut(session *Session, page *storage.Page) error
}

// Tracker finalizes tracked auxiliary objects belonging to a page before
// it is destroyed. It is "track_wrapup" in spec §1 and §4.7.
type Tracker interface {
	TrackWrapup(session *Session, page *storage.Page, final bool) error
}

// Clock is the cache's read-generation clock ("cache_read_gen" in spec
// §6), used to rerank a SPLIT_MERGE page that was skipped this round.
type Clock interface {
	Next() uint64
}
