// Package bootalloc implements the bump allocator that services the
// handful of allocations needed to construct the real heap objects
// before any real heap exists. It never deallocates and halts on
// overflow.
package bootalloc

import (
	"fmt"

	"util"
)

// Size is the fixed size of the static backing region.
const Size = 2 << 20

// Align is the minimum alignment handed out to every allocation; 16
// bytes comfortably covers every struct this allocator is asked to
// build (region tables, id-heap nodes, kernel-heap aggregates).
const Align = 16

// Halter is invoked when the bootstrap region is exhausted. Overflow
// is a fatal configuration error: there is no heap yet to fall back
// to, so the only sane response is to stop the boot CPU with a
// diagnostic.
type Halter interface {
	Halt(msg string)
}

// Allocator is a bump allocator over a fixed static byte region. It is
// the only allocator available before the physical heap exists, used
// exclusively to construct heap objects themselves.
type Allocator struct {
	buf    []byte
	cursor uintptr
	halt   Halter
}

// New wraps buf (which must be at least Size bytes, typically a
// `[Size]byte` global) as a bump allocator.
func New(buf []byte, halt Halter) *Allocator {
	if len(buf) < Size {
		halt.Halt(fmt.Sprintf("bootalloc: backing buffer too small: %d < %d", len(buf), Size))
	}
	return &Allocator{buf: buf, halt: halt}
}

// Alloc returns size bytes of zeroed memory, aligned to Align. It
// halts with a diagnostic message if the bootstrap region overflows;
// there is nowhere else to get memory from at this point in boot.
func (a *Allocator) Alloc(size uintptr) []byte {
	start := util.Roundup(a.cursor, uintptr(Align))
	end := start + size
	if end > uintptr(len(a.buf)) {
		a.halt.Halt(fmt.Sprintf("bootalloc: out of memory: requested %d at cursor %#x, region is %d bytes", size, start, len(a.buf)))
		return nil
	}
	// The bump pointer itself stays Align-aligned, capped at the end of
	// the buffer.
	a.cursor = util.Min(util.Roundup(end, uintptr(Align)), uintptr(len(a.buf)))
	region := a.buf[start:end]
	for i := range region {
		region[i] = 0
	}
	return region
}

// Used reports how many bytes have been handed out so far, for
// diagnostics.
func (a *Allocator) Used() uintptr { return a.cursor }

// Remaining reports how many bytes are left before the next Alloc
// would overflow.
func (a *Allocator) Remaining() uintptr { return uintptr(len(a.buf)) - a.cursor }
