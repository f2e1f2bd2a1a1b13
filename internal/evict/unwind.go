package evict

import "github.com/kartikbazzad/bunbase/bunder-evict/internal/storage"

// ExclClear implements excl_clear(root, last) from spec §4.8 literally, as
// a recursive depth-first release: visit root, restore it to Mem; if root
// is last, stop; otherwise recurse into every Locked child in sibling
// order (Disk children are skipped; Mem or Reading during unwind is the
// INVARIANT_VIOLATED corruption case of spec §7).
//
// reviewSubtree/unwindPath take the cheaper plain-slice-reversal route
// described in SPEC_FULL.md §D.5 for the hot abort path; ExclClear is kept
// as the literal primitive spec §8's P6 property is phrased against, and
// is exercised directly by the unwind tests.
func ExclClear(root *storage.PageRef, last *storage.PageRef) error {
	_, err := exclClear(root, last)
	return err
}

// exclClear returns (done, err): done is true once last has been reached,
// signalling the caller to stop visiting further siblings.
func exclClear(ref *storage.PageRef, last *storage.PageRef) (bool, error) {
	checkUnwindState(ref)
	ref.Restore(storage.Mem)
	if ref == last {
		return true, nil
	}

	page := ref.Page
	if page == nil || !page.Type.IsInternal() {
		return false, nil
	}

	for _, child := range page.ChildSlots() {
		switch child.Load() {
		case storage.Disk:
			continue
		case storage.Locked:
			done, err := exclClear(child, last)
			if err != nil {
				return done, err
			}
			if done {
				return true, nil
			}
		case storage.Mem, storage.Reading:
			return false, invariantViolated("excl_clear encountered %s while unwinding, want DISK or LOCKED", child.Load())
		}
	}
	return false, nil
}
