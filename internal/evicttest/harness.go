// Package evicttest builds small in-memory B-trees with real PageRef
// parent/child wiring and deterministic fakes for every external
// collaborator the eviction core consumes, so the scenarios of spec §8
// and the concurrency properties of spec §8/§5 can be driven end to end
// without a real reconciler, block manager, or disk pager.
//
// This is not a production B-tree: keys/values are opaque and there is no
// search - that is the separate on-disk B-tree engine's job, explicitly
// out of scope here (spec §1's Non-goals).
package evicttest

import (
	"sync"

	"github.com/kartikbazzad/bunbase/bunder-evict/internal/collab"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/storage"
)

// Leaf creates a resident leaf page of the given type, wrapped in a fresh
// Mem PageRef as if it were already linked under some parent (passing it
// to Internal replaces that ref with the parent's own slot).
func Leaf(t storage.PageType) *storage.Page {
	p := storage.NewPage(t)
	storage.NewPageRef(p)
	return p
}

// Internal creates a resident internal page with the given children
// already wired up via AddChild, each getting its own Mem PageRef. The
// internal page itself is wrapped in a fresh Mem PageRef, as Leaf does.
func Internal(t storage.PageType, children ...*storage.Page) *storage.Page {
	p := storage.NewPage(t)
	storage.NewPageRef(p)
	for _, c := range children {
		p.AddChild(storage.NewPageRef(c))
	}
	return p
}

// DiskChild appends a child slot to an internal page that is not
// resident: state Disk, Page nil, at the given address.
func DiskChild(p *storage.Page, addr storage.Address) *storage.PageRef {
	ref := storage.NewDiskPageRef(addr)
	p.AddChild(ref)
	return ref
}

// MarkDirty gives page a Modify (EnsureModify) without setting RecFlags,
// matching "a page that has been dirtied but not yet reconciled".
func MarkDirty(page *storage.Page) {
	page.EnsureModify()
}

// FakeReconciler is a scriptable stand-in for rec_write. Each call to
// Write pops the next scripted Outcome (or repeats the last one forever
// if Outcomes is shorter than the number of calls - convenient for the
// root-split loop, which calls Write once per level).
type FakeReconciler struct {
	mu       sync.Mutex
	Outcomes []Outcome
	calls    int

	// Err, if set, is returned by every call instead of applying an
	// Outcome - used to exercise ErrReconcileFailed.
	Err error
}

// Outcome is the effect of one scripted rec_write call.
type Outcome struct {
	Flags     storage.RecFlags
	Replace   storage.Address
	SplitPage *storage.Page
}

func (f *FakeReconciler) Write(_ *collab.Session, page *storage.Page, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	idx := f.calls
	if idx >= len(f.Outcomes) {
		idx = len(f.Outcomes) - 1
	}
	f.calls++
	out := f.Outcomes[idx]

	page.RecFlags = out.Flags
	mod := page.EnsureModify()
	mod.Replace = storage.Replace{Addr: out.Replace}
	mod.SplitPage = out.SplitPage
	return nil
}

// Calls reports how many times Write has been invoked.
func (f *FakeReconciler) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeBlockManager records every address it was asked to free.
type FakeBlockManager struct {
	mu    sync.Mutex
	Freed []storage.Address
	Err   error
}

func (f *FakeBlockManager) Free(_ *collab.Session, addr storage.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Freed = append(f.Freed, addr)
	return nil
}

// FakeAllocator counts PageOut calls and records which pages were torn
// down, so tests can assert "page_out called exactly once".
type FakeAllocator struct {
	mu       sync.Mutex
	OutPages []*storage.Page
}

func (f *FakeAllocator) PageOut(_ *collab.Session, page *storage.Page) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OutPages = append(f.OutPages, page)
	return nil
}

// Count reports how many times PageOut has been invoked.
func (f *FakeAllocator) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.OutPages)
}

// Contains reports whether PageOut was called with this exact page.
func (f *FakeAllocator) Contains(page *storage.Page) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.OutPages {
		if p == page {
			return true
		}
	}
	return false
}

// FakeTracker counts TrackWrapup calls.
type FakeTracker struct {
	mu    sync.Mutex
	Calls int
}

func (f *FakeTracker) TrackWrapup(_ *collab.Session, _ *storage.Page, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	return nil
}

// FakeClock is a monotonic counter standing in for cache_read_gen.
type FakeClock struct {
	n atomicCounter
}

func (c *FakeClock) Next() uint64 { return c.n.incr() }

type atomicCounter struct {
	mu sync.Mutex
	v  uint64
}

func (c *atomicCounter) incr() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v++
	return c.v
}
