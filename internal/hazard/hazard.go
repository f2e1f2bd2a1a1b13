// Package hazard implements the asymmetric hazard-pointer protocol that
// lets reader sessions assert "do not evict this page" without taking a
// lock, and lets the evictor take a cheap, eventually-consistent snapshot
// of every outstanding assertion. See spec §4.2 and §5.
//
// The design note in spec §9 suggests a bitmap or generation-counter
// scheme could replace the copy-and-sort snapshot at lower cost; we keep
// the copy-and-sort shape because it is what the spec's correctness
// argument is phrased in terms of, and because the registry is explicitly
// meant to be swappable behind this package's interface for deterministic
// tests (spec §9, "Global state").
package hazard

import (
	"sort"
	"sync/atomic"

	"github.com/kartikbazzad/bunbase/bunder-evict/internal/metrics"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/storage"
)

// Registry is the process-wide hazard array: max_sessions x
// max_hazards_per_session slots. Empty slots hold a nil page.
//
// Safety discipline: each session publishes/clears only its own row; the
// evictor only ever reads (via Snapshot). That asymmetry is what makes the
// protocol lock-free on both sides.
type Registry interface {
	// Publish stores (session, page) into the session's first empty
	// slot and returns the slot index for a later Clear, or false if the
	// session's row is full.
	Publish(session int, page *storage.Page) (slot int, ok bool)

	// Clear empties the given slot for the session.
	Clear(session, slot int)

	// Snapshot returns a sorted, read-only copy of every non-empty slot
	// across all sessions, as of the moment it is taken. A hazard
	// published after Snapshot returns is not visible in it.
	Snapshot() Snapshot

	// Contains reports whether page appears in the registry right now
	// (used by session-local retry loops, not by the evictor's review -
	// the evictor must use a Snapshot so its view doesn't shift under it
	// mid-review).
	Contains(page *storage.Page) bool
}

// Snapshot is a sorted, read-only view of hazard pointers at a point in
// time, searchable in O(log n).
type Snapshot []*storage.Page

// Has reports whether page is present in the snapshot.
func (s Snapshot) Has(page *storage.Page) bool {
	if page == nil {
		return false
	}
	target := storage.PagePtr(page)
	i := sort.Search(len(s), func(i int) bool {
		return storage.PagePtr(s[i]) >= target
	})
	return i < len(s) && s[i] == page
}

type registry struct {
	maxSessions int
	perSession  int
	slots       []atomic.Pointer[storage.Page]
}

// NewRegistry creates a flat hazard array dimensioned maxSessions x
// hazardsPerSession.
func NewRegistry(maxSessions, hazardsPerSession int) Registry {
	return &registry{
		maxSessions: maxSessions,
		perSession:  hazardsPerSession,
		slots:       make([]atomic.Pointer[storage.Page], maxSessions*hazardsPerSession),
	}
}

func (r *registry) row(session int) []atomic.Pointer[storage.Page] {
	start := session * r.perSession
	return r.slots[start : start+r.perSession]
}

func (r *registry) Publish(session int, page *storage.Page) (int, bool) {
	row := r.row(session)
	for i := range row {
		if row[i].CompareAndSwap(nil, page) {
			return i, true
		}
	}
	return -1, false
}

func (r *registry) Clear(session, slot int) {
	if slot < 0 {
		return
	}
	r.row(session)[slot].Store(nil)
}

func (r *registry) Snapshot() Snapshot {
	out := make(Snapshot, 0, len(r.slots))
	for i := range r.slots {
		if p := r.slots[i].Load(); p != nil {
			out = append(out, p)
		}
	}
	storage.SortPagesByAddress(out)
	metrics.HazardSnapshotSize.Observe(float64(len(out)))
	return out
}

func (r *registry) Contains(page *storage.Page) bool {
	for i := range r.slots {
		if r.slots[i].Load() == page {
			return true
		}
	}
	return false
}
