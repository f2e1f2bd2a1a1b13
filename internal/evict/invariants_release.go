//go:build !debug

package evict

import (
	"fmt"

	"github.com/kartikbazzad/bunbase/bunder-evict/internal/logger"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/storage"
)

// invariantViolated logs the corruption at Error level and returns it as a
// plain error instead of panicking, so a release build degrades by
// failing the single Evict call rather than taking down the process. See
// DESIGN.md for why this differs from the debug build's panic.
func invariantViolated(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	logger.Get().Error("evict invariant violated", "detail", msg)
	return fmt.Errorf("evict invariant: %s", msg)
}

func checkUnwindState(ref *storage.PageRef) {
	switch ref.Load() {
	case storage.Disk, storage.Locked:
		return
	default:
		logger.Get().Error("evict invariant violated", "detail", fmt.Sprintf("unwind encountered state %s, want DISK or LOCKED", ref.Load()))
	}
}
