//go:build debug

package evict

import (
	"fmt"

	"github.com/kartikbazzad/bunbase/bunder-evict/internal/storage"
)

// invariantViolated reports the INVARIANT_VIOLATED fatal class from spec
// §7: corruption discovered during unwind or dispatch. Debug builds panic
// immediately so a stress test fails loudly at the point of corruption
// rather than limping on; see spec §9's second Open Question.
func invariantViolated(format string, args ...any) error {
	panic(fmt.Sprintf("evict invariant: "+format, args...))
}

// checkUnwindState panics if excl_clear encounters anything other than
// DISK or LOCKED while walking a subtree that should already be
// exclusively held (spec §4.8).
func checkUnwindState(ref *storage.PageRef) {
	switch ref.Load() {
	case storage.Disk, storage.Locked:
		return
	default:
		panic(fmt.Sprintf("evict invariant: unwind encountered state %s, want DISK or LOCKED", ref.Load()))
	}
}
