// Package idheap implements the id-heap: a range allocator over a set
// of disjoint extents, used both for the physical heap (2 MiB-aligned
// physical RAM) and for the two fixed kernel virtual-address windows
// (huge-page and page granularity).
package idheap

import (
	"fmt"
	"sort"
	"sync"

	"region"
	"util"
)

// Invalid is returned by Alloc when no range of the requested size is
// available.
const Invalid = ^uintptr(0)

// free describes one free extent, kept sorted by Base.
type free struct {
	Base, Length uintptr
}

// Heap is a range allocator: it hands out aligned sub-ranges of a set
// of extents added with AddRange, and accepts them back with Free. It
// has an optional parent heap so a smaller heap (e.g. the page-sized
// kernel VA window) can borrow from a larger one when it runs dry — the
// same fallback shape mcache uses on a class miss, reused here for
// virtual heaps carved out of one fixed window.
type Heap struct {
	mu     sync.Mutex
	name   string
	align  uintptr
	free   []free
	parent *Heap
	// locked marks a heap safe to call from any context. The physical
	// heap and the locked general heap are safe from any context;
	// general/virtual heaps are used only under the kernel lock and
	// don't pay for the mutex in the hot path when this is false.
	locked bool
}

// New creates an empty id-heap. align is the minimum granularity of
// every range added and allocated (2 MiB for the physical heap, one
// huge page or one 4 KiB page for the virtual heaps). If parent is
// non-nil, an Alloc that cannot be satisfied locally borrows a fresh
// extent of the requested size from the parent before giving up.
func New(name string, align uintptr, parent *Heap, threadSafe bool) *Heap {
	return &Heap{name: name, align: align, parent: parent, locked: threadSafe}
}

// AddRange donates [base, base+length) to the heap. base and length
// must already be aligned to the heap's granularity; callers (the
// physical heap builder, the kernel VA window carver) are responsible
// for the 2 MiB inward alignment before calling this.
func (h *Heap) AddRange(base, length uintptr) error {
	if length == 0 {
		return nil
	}
	if base%h.align != 0 || length%h.align != 0 {
		return fmt.Errorf("idheap(%s): range %#x+%#x is not %#x-aligned", h.name, base, length, h.align)
	}
	h.lock()
	defer h.unlock()
	h.free = append(h.free, free{Base: base, Length: length})
	sort.Slice(h.free, func(i, j int) bool { return h.free[i].Base < h.free[j].Base })
	h.coalesceLocked()
	return nil
}

// Alloc returns the base of a fresh, aligned extent of size bytes, or
// Invalid if none is available (and the parent, if any, also has
// none). size is rounded up to the heap's alignment.
func (h *Heap) Alloc(size uintptr) uintptr {
	size = util.Roundup(size, h.align)
	if size == 0 {
		size = h.align
	}
	h.lock()
	base, ok := h.allocLocked(size)
	h.unlock()
	if ok {
		return base
	}
	if h.parent == nil {
		return Invalid
	}
	borrowed := h.parent.Alloc(size)
	if borrowed == Invalid {
		return Invalid
	}
	return borrowed
}

func (h *Heap) allocLocked(size uintptr) (uintptr, bool) {
	for i, f := range h.free {
		if f.Length < size {
			continue
		}
		base := f.Base
		if f.Length == size {
			h.free = append(h.free[:i], h.free[i+1:]...)
		} else {
			h.free[i] = free{Base: f.Base + size, Length: f.Length - size}
		}
		return base, true
	}
	return 0, false
}

// Dealloc returns [base, base+size) to the free list, merging it with
// adjacent free extents. size must match the original allocation size
// (rounded up to the heap's alignment).
func (h *Heap) Dealloc(base, size uintptr) {
	size = util.Roundup(size, h.align)
	h.lock()
	h.free = append(h.free, free{Base: base, Length: size})
	sort.Slice(h.free, func(i, j int) bool { return h.free[i].Base < h.free[j].Base })
	h.coalesceLocked()
	h.unlock()
}

func (h *Heap) coalesceLocked() {
	out := h.free[:0]
	for _, f := range h.free {
		if n := len(out); n > 0 && out[n-1].Base+out[n-1].Length == f.Base {
			out[n-1].Length += f.Length
			continue
		}
		out = append(out, f)
	}
	h.free = out
}

// Destroy is a no-op: id-heaps back the kernel heaps aggregate, which
// is established once during boot and never torn down. It exists only
// so Heap satisfies the generic heap capability set used elsewhere in
// the core.
func (h *Heap) Destroy() {}

// PageSize reports the heap's allocation granularity.
func (h *Heap) PageSize() uintptr { return h.align }

// ThreadSafe reports whether this heap may be called from any
// context, or only from single-threaded kernel-lock sections.
func (h *Heap) ThreadSafe() bool { return h.locked }

// Avail returns the total number of free bytes across all extents
// (not counting a parent heap), for diagnostics and tests.
func (h *Heap) Avail() uintptr {
	h.lock()
	defer h.unlock()
	var total uintptr
	for _, f := range h.free {
		total += f.Length
	}
	return total
}

func (h *Heap) lock() {
	if h.locked {
		h.mu.Lock()
	}
}

func (h *Heap) unlock() {
	if h.locked {
		h.mu.Unlock()
	}
}

// AlignInward2M rounds [base, base+length) inward to 2 MiB boundaries
// (base up, end down), the alignment the physical heap requires when
// it is built from the PHYSICAL regions in the loader's table. It
// returns ok=false if the aligned range is empty.
func AlignInward2M(base, length uintptr) (newBase, newLength uintptr, ok bool) {
	const align = 2 << 20
	end := base + length
	newBase = util.Roundup(base, align)
	newEnd := util.Rounddown(end, align)
	if newEnd <= newBase {
		return 0, 0, false
	}
	return newBase, newEnd - newBase, true
}

// BuildPhysical constructs the physical id-heap from every PHYSICAL
// region in the table, aligning each inward to 2 MiB and skipping any
// whose aligned length is zero. It halts via halt if no valid region
// is found, since there is nothing to run a kernel on without RAM.
func BuildPhysical(t *region.Table, halt interface{ Halt(string) }) *Heap {
	h := New("physical", 2<<20, nil, true)
	added := 0
	for _, r := range t.OfType(region.Physical) {
		base, length, ok := AlignInward2M(r.Base, r.Length)
		if !ok {
			continue
		}
		if err := h.AddRange(base, length); err != nil {
			halt.Halt(fmt.Sprintf("idheap: physical: %v", err))
			return h
		}
		added++
	}
	if added == 0 {
		halt.Halt("idheap: no valid PHYSICAL region found")
	}
	return h
}
