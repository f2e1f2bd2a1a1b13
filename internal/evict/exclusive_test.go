package evict

import (
	"errors"
	"testing"

	"github.com/kartikbazzad/bunbase/bunder-evict/internal/hazard"
	"github.com/kartikbazzad/bunbase/bunder-evict/internal/storage"
)

func TestRequestExclusive_SucceedsWithNoHazard(t *testing.T) {
	reg := hazard.NewRegistry(2, 2)
	page := storage.NewPage(storage.RowLeaf)
	ref := storage.NewPageRef(page)

	if err := requestExclusive(ref, reg, false, 0); err != nil {
		t.Fatalf("requestExclusive: %v", err)
	}
	if ref.Load() != storage.Locked {
		t.Fatalf("ref state: got %s, want LOCKED", ref.Load())
	}
}

func TestRequestExclusive_BusyWithoutForce(t *testing.T) {
	reg := hazard.NewRegistry(2, 2)
	page := storage.NewPage(storage.RowLeaf)
	ref := storage.NewPageRef(page)
	reg.Publish(0, page)

	err := requestExclusive(ref, reg, false, 0)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("requestExclusive error: got %v, want ErrBusy", err)
	}
	if ref.Load() != storage.Mem {
		t.Fatalf("ref state: got %s, want MEM (restored)", ref.Load())
	}
}

func TestRequestExclusive_ForceSucceedsOnceHazardCleared(t *testing.T) {
	reg := hazard.NewRegistry(2, 2)
	page := storage.NewPage(storage.RowLeaf)
	ref := storage.NewPageRef(page)
	slot, _ := reg.Publish(0, page)

	done := make(chan error, 1)
	go func() {
		done <- requestExclusive(ref, reg, true, 0)
	}()

	reg.Clear(0, slot)

	if err := <-done; err != nil {
		t.Fatalf("requestExclusive under force: %v", err)
	}
	if ref.Load() != storage.Locked {
		t.Fatalf("ref state: got %s, want LOCKED", ref.Load())
	}
}

func TestRequestExclusive_ForceGivesUpAfterWaitBudget(t *testing.T) {
	reg := hazard.NewRegistry(2, 2)
	page := storage.NewPage(storage.RowLeaf)
	ref := storage.NewPageRef(page)
	reg.Publish(0, page)

	err := requestExclusive(ref, reg, true, 5)
	if err == nil {
		t.Fatalf("requestExclusive: want an error once the wait budget is exhausted")
	}
	if ref.Load() != storage.Mem {
		t.Fatalf("ref state: got %s, want MEM (restored after giving up)", ref.Load())
	}
}
