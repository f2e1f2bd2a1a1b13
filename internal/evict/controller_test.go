package evict

import (
	"errors"
	"testing"

	"github.com/kartikbazzad/bunbase/bunder-evict/internal/collab"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/config"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/discardpool"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/evicttest"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/hazard"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/storage"
)

type fixture struct {
	evictor *Evictor
	recon   *evicttest.FakeReconciler
	bm      *evicttest.FakeBlockManager
	alloc   *evicttest.FakeAllocator
	tracker *evicttest.FakeTracker
	clock   *evicttest.FakeClock
	hazards hazard.Registry
}

func newFixture(t *testing.T, outcomes ...evicttest.Outcome) *fixture {
	t.Helper()
	pool, err := discardpool.New(2)
	if err != nil {
		t.Fatalf("discardpool.New: %v", err)
	}
	f := &fixture{
		recon:   &evicttest.FakeReconciler{Outcomes: outcomes},
		bm:      &evicttest.FakeBlockManager{},
		alloc:   &evicttest.FakeAllocator{},
		tracker: &evicttest.FakeTracker{},
		clock:   &evicttest.FakeClock{},
		hazards: hazard.NewRegistry(4, 4),
	}
	f.evictor = NewEvictor(Deps{
		Reconciler: f.recon,
		BlockMgr:   f.bm,
		Allocator:  f.alloc,
		Tracker:    f.tracker,
		Clock:      f.clock,
		Hazards:    f.hazards,
		Discard:    pool,
	}, config.Defaults())
	return f
}

func session() *collab.Session { return &collab.Session{ID: 1} }

// Scenario 1 (spec §8): clean leaf, no children.
func TestEvict_CleanLeaf(t *testing.T) {
	f := newFixture(t)
	leaf := evicttest.Leaf(storage.RowLeaf)
	parent := evicttest.Internal(storage.RowInt, leaf)
	bt := storage.NewBtree(parent)

	if err := f.evictor.Evict(session(), bt, leaf, 0); err != nil {
		t.Fatalf("Evict: %v", err)
	}

	if f.recon.Calls() != 0 {
		t.Fatalf("rec_write calls: got %d, want 0", f.recon.Calls())
	}
	ref := leaf.Ref
	if ref.Load() != storage.Disk {
		t.Fatalf("ref state: got %s, want DISK", ref.Load())
	}
	if ref.Page != nil {
		t.Fatalf("ref.Page: got non-nil, want nil")
	}
	if !f.alloc.Contains(leaf) || f.alloc.Count() != 1 {
		t.Fatalf("page_out calls: got %d (contains=%v), want exactly 1", f.alloc.Count(), f.alloc.Contains(leaf))
	}
}

// Scenario 2: clean internal with two clean (on-disk) leaves, no hazards.
func TestEvict_CleanInternal_DiskChildren(t *testing.T) {
	f := newFixture(t)
	internal := storage.NewPage(storage.RowInt)
	evicttest.DiskChild(internal, storage.Address{Addr: 1, Size: 10})
	evicttest.DiskChild(internal, storage.Address{Addr: 2, Size: 10})
	root := evicttest.Internal(storage.RowInt, internal)
	bt := storage.NewBtree(root)

	if err := f.evictor.Evict(session(), bt, internal, 0); err != nil {
		t.Fatalf("Evict: %v", err)
	}

	if internal.Ref.Load() != storage.Disk {
		t.Fatalf("internal ref state: got %s, want DISK", internal.Ref.Load())
	}
	if f.alloc.Count() != 1 {
		t.Fatalf("page_out calls: got %d, want 1 (internal only)", f.alloc.Count())
	}
}

// Scenario 3: dirty leaf, reconciler returns REPLACE.
func TestEvict_DirtyLeaf_Replace(t *testing.T) {
	newAddr := storage.Address{Addr: 0xA, Size: 100}
	f := newFixture(t, evicttest.Outcome{Flags: storage.RecReplace, Replace: newAddr})

	leaf := evicttest.Leaf(storage.RowLeaf)
	evicttest.MarkDirty(leaf)
	parent := evicttest.Internal(storage.RowInt, leaf)
	bt := storage.NewBtree(parent)
	leaf.Ref.Addr = storage.Address{Addr: 0x5, Size: 50, OffPage: true}

	if err := f.evictor.Evict(session(), bt, leaf, 0); err != nil {
		t.Fatalf("Evict: %v", err)
	}

	if leaf.Ref.Load() != storage.Disk {
		t.Fatalf("ref state: got %s, want DISK", leaf.Ref.Load())
	}
	if leaf.Ref.Addr != newAddr {
		t.Fatalf("ref addr: got %+v, want %+v", leaf.Ref.Addr, newAddr)
	}
	if len(f.bm.Freed) != 1 || f.bm.Freed[0].Addr != 0x5 {
		t.Fatalf("freed addrs: got %+v, want old off-page addr freed", f.bm.Freed)
	}
}

// Scenario 3b: the old address was inlined in the parent's image
// (OffPage=false) and must not be freed.
func TestEvict_DirtyLeaf_Replace_DoesNotFreeOnPageAddr(t *testing.T) {
	newAddr := storage.Address{Addr: 0xA, Size: 100}
	f := newFixture(t, evicttest.Outcome{Flags: storage.RecReplace, Replace: newAddr})

	leaf := evicttest.Leaf(storage.RowLeaf)
	evicttest.MarkDirty(leaf)
	parent := evicttest.Internal(storage.RowInt, leaf)
	bt := storage.NewBtree(parent)
	leaf.Ref.Addr = storage.Address{Addr: 0x5, Size: 50, OffPage: false}

	if err := f.evictor.Evict(session(), bt, leaf, 0); err != nil {
		t.Fatalf("Evict: %v", err)
	}
	if len(f.bm.Freed) != 0 {
		t.Fatalf("freed addrs: got %+v, want none (on-page address is borrowed)", f.bm.Freed)
	}
}

// Scenario 4: dirty leaf, reconciler returns EMPTY.
func TestEvict_DirtyLeaf_Empty(t *testing.T) {
	f := newFixture(t, evicttest.Outcome{Flags: storage.RecEmpty})
	leaf := evicttest.Leaf(storage.RowLeaf)
	evicttest.MarkDirty(leaf)
	parent := evicttest.Internal(storage.RowInt, leaf)
	bt := storage.NewBtree(parent)

	if err := f.evictor.Evict(session(), bt, leaf, 0); err != nil {
		t.Fatalf("Evict: %v", err)
	}

	if leaf.Ref.Load() != storage.Mem {
		t.Fatalf("ref state: got %s, want MEM (page stays resident)", leaf.Ref.Load())
	}
	if leaf.Ref.Page != leaf {
		t.Fatalf("ref.Page: got %p, want %p (unchanged)", leaf.Ref.Page, leaf)
	}
	if f.alloc.Count() != 0 {
		t.Fatalf("page_out calls: got %d, want 0", f.alloc.Count())
	}
}

// Scenario 5: internal page with one child in READING -> BUSY, no
// transitions remain (the candidate's own ref is restored to MEM).
func TestEvict_BusyChild(t *testing.T) {
	f := newFixture(t)
	reading := evicttest.Leaf(storage.RowLeaf)
	internal := evicttest.Internal(storage.RowInt, reading)
	internal.Children[0].Restore(storage.Reading)
	root := evicttest.Internal(storage.RowInt, internal)
	bt := storage.NewBtree(root)

	err := f.evictor.Evict(session(), bt, internal, 0)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("Evict error: got %v, want ErrBusy", err)
	}
	if internal.Ref.Load() != storage.Mem {
		t.Fatalf("internal ref state: got %s, want MEM", internal.Ref.Load())
	}
	if internal.Children[0].Load() != storage.Reading {
		t.Fatalf("child state: got %s, want READING (untouched)", internal.Children[0].Load())
	}
}

// Root split loop: reconciliation returns SPLIT once, then REPLACE on the
// new internal. Two rec_write calls; final RootAddr is the REPLACE
// output; RootPage is nil; both the original root and the intermediate
// split page are discarded.
func TestEvict_RootSplitLoop(t *testing.T) {
	splitPage := storage.NewPage(storage.RowInt)
	replaceAddr := storage.Address{Addr: 0x99, Size: 4096}
	f := newFixture(t,
		evicttest.Outcome{Flags: storage.RecSplit, SplitPage: splitPage},
		evicttest.Outcome{Flags: storage.RecReplace, Replace: replaceAddr},
	)

	root := evicttest.Leaf(storage.RowLeaf)
	evicttest.MarkDirty(root)
	bt := storage.NewBtree(root)

	if err := f.evictor.Evict(session(), bt, root, 0); err != nil {
		t.Fatalf("Evict: %v", err)
	}

	if f.recon.Calls() != 2 {
		t.Fatalf("rec_write calls: got %d, want 2", f.recon.Calls())
	}
	if bt.RootAddr != replaceAddr {
		t.Fatalf("root addr: got %+v, want %+v", bt.RootAddr, replaceAddr)
	}
	if bt.RootPage() != nil {
		t.Fatalf("root page: got non-nil, want nil")
	}
	if !f.alloc.Contains(root) || !f.alloc.Contains(splitPage) {
		t.Fatalf("expected both original root and intermediate split page discarded")
	}
}

// A root loaded from disk (non-zero RootAddr) that is dirtied and evicted
// with REPLACE must free its old on-disk block before the new address is
// installed, the same as the root-EMPTY path does - see
// __rec_root_addr_update in the original reconciliation source.
func TestEvict_DirtyRoot_Replace_FreesOldRootAddr(t *testing.T) {
	oldAddr := storage.Address{Addr: 0x1, Size: 4096, OffPage: true}
	newAddr := storage.Address{Addr: 0x2, Size: 4096, OffPage: true}
	f := newFixture(t, evicttest.Outcome{Flags: storage.RecReplace, Replace: newAddr})

	root := evicttest.Leaf(storage.RowLeaf)
	evicttest.MarkDirty(root)
	bt := storage.NewBtree(root)
	bt.RootAddr = oldAddr

	if err := f.evictor.Evict(session(), bt, root, 0); err != nil {
		t.Fatalf("Evict: %v", err)
	}

	if len(f.bm.Freed) != 1 || f.bm.Freed[0] != oldAddr {
		t.Fatalf("freed addrs: got %+v, want old root addr %+v freed", f.bm.Freed, oldAddr)
	}
	if bt.RootAddr != newAddr {
		t.Fatalf("root addr: got %+v, want %+v", bt.RootAddr, newAddr)
	}
}

// SPLIT_MERGE pages are never evicted standalone: Evict short-circuits,
// refreshes ReadGen, and restores MEM without ever calling rec_write or
// page_out.
func TestEvict_SplitMergeShortCircuit(t *testing.T) {
	f := newFixture(t)
	page := evicttest.Leaf(storage.RowLeaf)
	page.RecFlags = storage.RecSplitMerge
	parent := evicttest.Internal(storage.RowInt, page)
	bt := storage.NewBtree(parent)

	if err := f.evictor.Evict(session(), bt, page, 0); err != nil {
		t.Fatalf("Evict: %v", err)
	}
	if page.Ref.Load() != storage.Mem {
		t.Fatalf("ref state: got %s, want MEM", page.Ref.Load())
	}
	if f.recon.Calls() != 0 {
		t.Fatalf("rec_write calls: got %d, want 0", f.recon.Calls())
	}
	if f.alloc.Count() != 0 {
		t.Fatalf("page_out calls: got %d, want 0", f.alloc.Count())
	}
	if page.ReadGen == 0 {
		t.Fatalf("ReadGen: got 0, want refreshed by the clock collaborator")
	}
}

// SINGLE mode skips hazard acquisition: a review that would otherwise
// fail under a hazard still proceeds, and no unwind happens on success.
func TestEvict_SingleModeSkipsHazard(t *testing.T) {
	f := newFixture(t)
	leaf := evicttest.Leaf(storage.RowLeaf)
	parent := evicttest.Internal(storage.RowInt, leaf)
	bt := storage.NewBtree(parent)

	// Publish a hazard on leaf; under non-SINGLE mode this would force
	// BUSY, but SINGLE must skip the hazard check entirely.
	f.hazards.Publish(0, leaf)

	if err := f.evictor.Evict(session(), bt, leaf, Single); err != nil {
		t.Fatalf("Evict under Single: %v", err)
	}
	if leaf.Ref.Load() != storage.Disk {
		t.Fatalf("ref state: got %s, want DISK", leaf.Ref.Load())
	}
}
