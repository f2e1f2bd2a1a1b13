// Package storage holds the in-memory B-tree page model that the eviction
// core operates on: Page, PageRef, Modify and the Btree root descriptor.
// It carries no disk I/O of its own (reading pages from disk is an explicit
// Non-goal of this module - see SPEC_FULL.md §E); a Page is either handed
// to the tree already resident, or never seen at all.
package storage

import (
	"sort"
	"sync"
	"sync/atomic"
)

// PageType identifies the shape of a page's payload.
type PageType int

const (
	RowLeaf PageType = iota
	ColLeaf
	RowInt
	ColInt
)

func (t PageType) String() string {
	switch t {
	case RowLeaf:
		return "ROW_LEAF"
	case ColLeaf:
		return "COL_LEAF"
	case RowInt:
		return "ROW_INT"
	case ColInt:
		return "COL_INT"
	default:
		return "UNKNOWN"
	}
}

// IsInternal reports whether pages of this type have children.
func (t PageType) IsInternal() bool {
	return t == RowInt || t == ColInt
}

// RecFlags records the outcome of the most recent reconciliation of a page.
type RecFlags int

const (
	RecNone RecFlags = iota
	RecEmpty
	RecReplace
	RecSplit
	RecSplitMerge
)

func (f RecFlags) String() string {
	switch f {
	case RecNone:
		return "NONE"
	case RecEmpty:
		return "EMPTY"
	case RecReplace:
		return "REPLACE"
	case RecSplit:
		return "SPLIT"
	case RecSplitMerge:
		return "SPLIT_MERGE"
	default:
		return "UNKNOWN"
	}
}

// Address is an on-disk locator for a page image.
//
// OffPage records whether this address was separately heap-allocated
// ("off-page", owned by the ref) versus inlined in the parent's page
// image ("on-page", borrowed). Only OffPage addresses are freed through
// the block manager when replaced - see spec §9, first Open Question.
type Address struct {
	Addr   uint64
	Size   uint32
	OffPage bool
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a.Addr == 0 && a.Size == 0
}

// Replace is the output of a reconciliation pass that rewrote a page to a
// single new on-disk location.
type Replace struct {
	Addr Address
}

// Modify holds the output of reconciliation for a dirty page. Exactly one
// of Replace/SplitPage is meaningful, chosen by the owning Page's RecFlags.
type Modify struct {
	Replace   Replace
	SplitPage *Page
}

// Page is an in-memory B-tree node.
type Page struct {
	Type PageType

	// Ref is the back-link to the parent's slot referencing this page.
	// Nil only for a page that has not yet been linked under a parent
	// (e.g. a brand-new split page before parentupdate wires it in).
	Ref *PageRef

	// Parent is the owning internal page, or nil at the root.
	Parent *Page

	// RecFlags is mutated only by the external reconciler (rec_write);
	// the eviction core reads it but never sets it except to clear it
	// ahead of a fresh reconciliation pass (see PrepareModify).
	RecFlags RecFlags

	// ReadGen is an opaque clock value used to rerank a skipped page;
	// the eviction core only ever refreshes it (see controller.go's
	// SPLIT_MERGE short-circuit), never interprets it.
	ReadGen uint64

	// Modify is present iff the page has been dirtied.
	Modify *Modify

	// Children holds the child PageRefs, in sibling order, for internal
	// pages. Empty for leaves.
	Children []*PageRef

	// mu guards Children and Modify against concurrent structural
	// change; it is not the hazard/state synchronization point (that is
	// PageRef.state) but protects this package's own bookkeeping.
	mu sync.Mutex
}

// NewPage allocates a page of the given type with no children and no
// modify state.
func NewPage(t PageType) *Page {
	return &Page{Type: t}
}

// IsDirty reports whether the page has been dirtied (modified since its
// last reconciliation), per the data-model invariant that Modify is
// present iff the page is dirty.
func (p *Page) IsDirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Modify != nil
}

// EnsureModify lazily allocates Modify, mirroring the external
// page_modify_init collaborator's job of preparing a page for a new
// reconciliation pass.
func (p *Page) EnsureModify() *Modify {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Modify == nil {
		p.Modify = &Modify{}
	}
	return p.Modify
}

// PrepareModify clears RecFlags and ensures Modify is present, as the
// §4.6 root-split loop does before re-reconciling the new root: "mark it
// modified, clear its rec_flags, write it via the external reconciler."
func (p *Page) PrepareModify() {
	p.mu.Lock()
	p.RecFlags = RecNone
	if p.Modify == nil {
		p.Modify = &Modify{}
	}
	p.mu.Unlock()
}

// AddChild appends a child ref in sibling order and wires its back-link.
func (p *Page) AddChild(ref *PageRef) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Children = append(p.Children, ref)
	if ref.Page != nil {
		ref.Page.Parent = p
		ref.Page.Ref = ref
	}
}

// ChildSlots returns a snapshot of the child ref slice, safe to iterate
// without holding p's lock.
func (p *Page) ChildSlots() []*PageRef {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*PageRef, len(p.Children))
	copy(out, p.Children)
	return out
}

// PageRef is a parent's slot pointing at one child. State is the
// serialization point between the evictor and concurrent readers; see
// state.go.
type PageRef struct {
	state atomic.Int32 // State, accessed via Load/store/compareAndSwap

	// Page is valid iff Load() is Mem or Locked.
	Page *Page

	// Addr is the on-disk locator; see Address.OffPage for ownership.
	Addr Address
}

// NewPageRef creates a ref already resident in memory, pointing at page.
func NewPageRef(page *Page) *PageRef {
	r := &PageRef{Page: page}
	r.store(Mem)
	if page != nil {
		page.Ref = r
	}
	return r
}

// NewDiskPageRef creates a ref describing an on-disk-only child.
func NewDiskPageRef(addr Address) *PageRef {
	r := &PageRef{Addr: addr}
	r.store(Disk)
	return r
}

// Btree owns the root of the tree and the fields checkpoint/sync observe.
type Btree struct {
	mu sync.Mutex

	// Root is a synthetic PageRef for the resident root: the root has no
	// parent slot to carry a State, but the hazard protocol and the
	// exclusivity walker both operate on PageRefs, so the root gets one
	// of its own. Its Addr field is unused; RootAddr below is the
	// authoritative on-disk locator (root commits write directly to
	// Btree fields, not through Root.Addr - see spec §4.4's root-dirty
	// dispatch).
	Root *PageRef

	// RootAddr is the on-disk locator of the root.
	RootAddr Address

	// RootUpdate is set whenever the root descriptor changes, for
	// checkpoint/sync to observe; this module never clears it (that is
	// the checkpoint collaborator's job, out of scope here).
	RootUpdate bool
}

// NewBtree creates a tree rooted at root (which may be an internal or leaf
// page; NewPageRef has already been called on it by the caller if it is to
// be tracked as a child somewhere, but the root itself has no parent ref).
// NewBtree does not set root's own back-link (Page.Ref) - that field means
// "the parent slot that points at me", and the root has no parent - even
// though Btree.Root wraps it in a PageRef for locking purposes.
func NewBtree(root *Page) *Btree {
	bt := &Btree{Root: &PageRef{Page: root}}
	bt.Root.store(Mem)
	return bt
}

// RootPage is the currently resident root, or nil.
func (bt *Btree) RootPage() *Page {
	if bt.Root == nil {
		return nil
	}
	return bt.Root.Page
}

// SetRoot replaces the resident root with page (nil to mean "not
// resident"), wrapping it in a fresh Mem PageRef. Used by the root-empty,
// root-replace, and root-split commit paths of spec §4.4/§4.6.
func (bt *Btree) SetRoot(page *Page) {
	ref := &PageRef{Page: page}
	if page != nil {
		ref.store(Mem)
	} else {
		ref.store(Disk)
	}
	bt.Root = ref
}

// Lock/Unlock wrap a mutex over the root fields, which per spec §5 are
// "mutated only inside evict while the root is LOCKED". Evict and the
// commit paths do not take this mutex; the root's LOCKED state is what
// they rely on.
func (bt *Btree) Lock()   { bt.mu.Lock() }
func (bt *Btree) Unlock() { bt.mu.Unlock() }

// SortPagesByAddress sorts a slice of *Page by pointer identity, giving a
// total order usable for the hazard snapshot's binary search (spec §4.2).
func SortPagesByAddress(pages []*Page) {
	sort.Slice(pages, func(i, j int) bool {
		return pagePtr(pages[i]) < pagePtr(pages[j])
	})
}
