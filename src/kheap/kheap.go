// Package kheap implements the backed heaps and mcache that sit above
// the raw id-heaps: page-backed and linear-backed allocators, a
// segregated size-class cache (mcache) with parent fallback, a
// mutex-wrapped locking heap, and the kernel heaps aggregate that
// boot establishes once and never tears down.
package kheap

import (
	"sync"

	"idheap"
	"mmu"
	"util"
)

// Invalid is the sentinel every heap in this package returns on
// allocation failure, matching idheap.Invalid.
const Invalid = idheap.Invalid

// Heap is the capability set every allocator in the kernel provides:
// alloc, dealloc, destroy, and the two attributes pagesize/thread_safe.
// idheap.Heap already satisfies it; every type defined here does too.
type Heap interface {
	Alloc(size uintptr) uintptr
	Dealloc(addr, size uintptr)
	Destroy()
	PageSize() uintptr
	ThreadSafe() bool
}

// PageMapper is the subset of mmu.PageTable a backed heap needs to
// install or tear down its own mappings.
type PageMapper interface {
	Map(va, pa, length uintptr, flags mmu.Flags) error
	Unmap(va, length uintptr) error
}

// PageBacked allocates a VA from a virtual id-heap and physical pages
// from a physical id-heap, maps the two together with default kernel
// flags, and returns the VA. Dealloc unmaps the range and returns the
// VA to the virtual heap; the backing physical pages are not returned
// to the physical heap.
type PageBacked struct {
	virtual  *idheap.Heap
	physical *idheap.Heap
	mmu      PageMapper
	flags    mmu.Flags
}

// NewPageBacked builds a page-backed heap over the given virtual and
// physical id-heaps.
func NewPageBacked(virtual, physical *idheap.Heap, m PageMapper) *PageBacked {
	return &PageBacked{virtual: virtual, physical: physical, mmu: m, flags: mmu.KernelDefault()}
}

// Alloc reserves size bytes of VA and backing physical memory, maps
// them together, and returns the VA, or Invalid if either heap is
// exhausted or the mapping fails.
func (p *PageBacked) Alloc(size uintptr) uintptr {
	size = util.Roundup(size, p.virtual.PageSize())
	va := p.virtual.Alloc(size)
	if va == Invalid {
		return Invalid
	}
	pa := p.physical.Alloc(size)
	if pa == Invalid {
		p.virtual.Dealloc(va, size)
		return Invalid
	}
	if err := p.mmu.Map(va, pa, size, p.flags); err != nil {
		p.physical.Dealloc(pa, size)
		p.virtual.Dealloc(va, size)
		return Invalid
	}
	return va
}

// Dealloc tears down the mapping at va and returns the VA range to the
// virtual heap. PageBacked does not record which physical address
// Alloc paired with va, so the backing physical range stays allocated
// in the physical heap.
func (p *PageBacked) Dealloc(va, size uintptr) {
	size = util.Roundup(size, p.virtual.PageSize())
	p.mmu.Unmap(va, size)
	p.virtual.Dealloc(va, size)
}

func (p *PageBacked) Destroy()          {}
func (p *PageBacked) PageSize() uintptr { return p.virtual.PageSize() }
func (p *PageBacked) ThreadSafe() bool  { return false }

// LinearBacked returns addresses in the permanently-mapped identity
// window over physical memory: there is no per-allocation Map call,
// since the whole window is mapped once at boot.
type LinearBacked struct {
	physical *idheap.Heap
	base     uintptr // VA of the start of the identity window
}

// NewLinearBacked builds a linear-backed heap over physical, whose
// addresses are interpreted as offsets into the identity window
// starting at base.
func NewLinearBacked(physical *idheap.Heap, base uintptr) *LinearBacked {
	return &LinearBacked{physical: physical, base: base}
}

// Alloc reserves size bytes of physical memory and returns its
// identity-mapped VA, or Invalid if physical is exhausted.
func (l *LinearBacked) Alloc(size uintptr) uintptr {
	pa := l.physical.Alloc(size)
	if pa == Invalid {
		return Invalid
	}
	return l.base + pa
}

// Dealloc returns the physical range backing the VA va (previously
// returned by Alloc) to the physical heap.
func (l *LinearBacked) Dealloc(va, size uintptr) {
	l.physical.Dealloc(va-l.base, size)
}

func (l *LinearBacked) Destroy()          {}
func (l *LinearBacked) PageSize() uintptr { return l.physical.PageSize() }
func (l *LinearBacked) ThreadSafe() bool  { return false }

// Locking wraps any Heap with a mutex so it is safe to call from any
// context — the "locked" member of the kernel heaps aggregate.
type Locking struct {
	mu    sync.Mutex
	inner Heap
}

// NewLocking wraps inner with a mutex.
func NewLocking(inner Heap) *Locking {
	return &Locking{inner: inner}
}

func (l *Locking) Alloc(size uintptr) uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Alloc(size)
}

func (l *Locking) Dealloc(addr, size uintptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.Dealloc(addr, size)
}

func (l *Locking) Destroy() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.Destroy()
}

func (l *Locking) PageSize() uintptr { return l.inner.PageSize() }
func (l *Locking) ThreadSafe() bool  { return true }
