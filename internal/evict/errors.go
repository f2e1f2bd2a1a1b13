package evict

import "errors"

// Error taxonomy from spec §7. Busy and Unmergeable are recoverable at the
// caller's discretion (retry later / pick another candidate); the
// external-collaborator failures are propagated as-is, wrapped with %w.
var (
	// ErrBusy means a concurrent actor holds a conflicting state or
	// hazard reference. The caller may retry later.
	ErrBusy = errors.New("evict: busy")

	// ErrUnmergeable means the subtree contains a child that cannot be
	// merged into its parent right now. The evictor should pick another
	// candidate.
	ErrUnmergeable = errors.New("evict: subtree contains an unmergeable child")

	// ErrReconcileFailed wraps a failure from the external reconciler.
	ErrReconcileFailed = errors.New("evict: reconciliation failed")

	// ErrAllocFailed wraps a failure allocating a new address holder
	// during a REPLACE commit.
	ErrAllocFailed = errors.New("evict: address allocation failed")

	// ErrWaitExhausted means a WAIT-mode hazard spin ran past
	// EVICT_WAIT_YIELD_BUDGET iterations without the hazard clearing. This
	// is the ambient bound SPEC_FULL.md §B adds on top of spec §4.2's
	// unbounded "yield the scheduler and retry"; it is a recoverable
	// busy-style outcome, not corruption, so it is its own sentinel rather
	// than routed through invariantViolated.
	ErrWaitExhausted = errors.New("evict: wait-mode hazard spin exceeded budget")
)
