package storage

import "unsafe"

// pagePtr gives a *Page a total order by its memory address, for the
// hazard snapshot's sort-then-binary-search membership test (spec §4.2).
func pagePtr(p *Page) uintptr {
	return uintptr(unsafe.Pointer(p))
}

// PagePtr is the exported form of pagePtr, used by the hazard package to
// sort and binary-search its snapshot against the same total order.
func PagePtr(p *Page) uintptr {
	return pagePtr(p)
}
