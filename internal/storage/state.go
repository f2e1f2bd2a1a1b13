package storage

// (PageRef.state is a sync/atomic.Int32; see page.go.)

// State is the lifecycle of a PageRef. It is the single synchronization
// word between readers publishing hazards and the evictor: every write to
// Page/Addr on a PageRef must happen-before the corresponding State
// transition becomes visible, and every reader dereference of Page must
// happen-after an acquire-load of State.
type State int32

const (
	// Disk means the ref has no in-memory representation; Page is nil.
	Disk State = iota
	// Reading means a page-in is in progress; Page is not yet safe to use.
	Reading
	// Mem means Page is resident and safe for a reader holding a hazard.
	Mem
	// Locked means the evictor owns the ref exclusively; only the
	// evicting session may touch Page.
	Locked
)

func (s State) String() string {
	switch s {
	case Disk:
		return "DISK"
	case Reading:
		return "READING"
	case Mem:
		return "MEM"
	case Locked:
		return "LOCKED"
	default:
		return "UNKNOWN"
	}
}

// Load is an acquire-load of the ref's state, the pairing half of the
// hazard-publish handshake described in spec §5: a reader must load State
// only after publishing its hazard and fencing.
func (r *PageRef) Load() State {
	return State(r.state.Load())
}

// store is a release-store of the ref's state. Callers must have already
// written every structure field (Page, Addr) that the new state makes
// observable, per spec §4.5: "structure fields are set before the state
// transition is observable to readers."
func (r *PageRef) store(s State) {
	r.state.Store(int32(s))
}

// compareAndSwap atomically transitions the ref from old to new, reporting
// whether it succeeded. The hazard protocol's exclusive-request does not
// use it; it stores Locked through ForceLocked.
func (r *PageRef) compareAndSwap(old, new State) bool {
	return r.state.CompareAndSwap(int32(old), int32(new))
}

// ForceLocked stores Locked unconditionally, per hazard_exclusive step 2
// (spec §4.2): "Store ref.State = Locked." The precondition (State is Mem
// or already Locked) is the caller's to establish; this is not a CAS
// because the evictor is the only writer ever attempting this transition
// for a ref it has already decided to review.
func (r *PageRef) ForceLocked() {
	r.store(Locked)
}

// Restore releases a Locked ref back to s (almost always Mem), the
// release-store half of every "undo exclusivity" path in the spec: a
// failed hazard_exclusive (§4.2 step 6), a review abort (§4.3, §4.8), and
// the non-root EMPTY commit that leaves the page resident for its parent
// to absorb later (§4.4 step 4).
func (r *PageRef) Restore(s State) {
	r.store(s)
}

// CommitDiskEmpty clears Page and publishes Disk, the non-root clean-page
// outcome of spec §4.4 step 4: "ref.page <- null; ref.state <- DISK."
// (A non-root EMPTY commit does not use it: that page stays resident.)
// Fields are cleared before the release-store per §4.5.
func (r *PageRef) CommitDiskEmpty() {
	r.Page = nil
	r.store(Disk)
}

// CommitDiskAddr sets Addr to a freshly-reconciled location and publishes
// Disk, the REPLACE commit of spec §4.4 step 4.
func (r *PageRef) CommitDiskAddr(addr Address) {
	r.Page = nil
	r.Addr = addr
	r.store(Disk)
}

// CommitMemSplit points the ref at the page produced by reconciliation's
// split and publishes Mem, the SPLIT commit of spec §4.4 step 4: "ref.page
// <- modify.split; ref.state <- MEM."
func (r *PageRef) CommitMemSplit(page *Page) {
	r.Page = page
	if page != nil {
		page.Ref = r
	}
	r.store(Mem)
}
