// Package mmu provides the 2 MiB and 4 KiB mapping primitives that
// back the kernel's virtual heaps: map/unmap, batched TLB
// invalidation, and the pageflags constructor set.
package mmu

import "util"

// Page and huge-page granularity, x86-64 style (4 KiB pages, 2 MiB
// huge pages) — the granularities used throughout (2 MiB alignment
// for the physical heap, a huge and a page-sized kernel VA heap).
const (
	PageSize uintptr = 1 << 12
	HugeSize uintptr = 1 << 21
)

// Flags is a page-flag constructor set: Memory() starts a fresh flag
// value and the monotonic builders compose attributes onto it. Adding
// Writable() then Readonly() yields a read-only mapping — Readonly
// clears the writable bit and Writable sets it, so whichever of the two
// is called last decides the final W/RO outcome.
type Flags struct {
	writable bool
	execable bool
}

// Memory starts a plain, non-executable, read-only page flag set.
func Memory() Flags { return Flags{} }

// Writable marks the mapping writable.
func (f Flags) Writable() Flags { f.writable = true; return f }

// Readonly clears the writable bit, regardless of prior builder calls.
func (f Flags) Readonly() Flags { f.writable = false; return f }

// Exec marks the mapping executable.
func (f Flags) Exec() Flags { f.execable = true; return f }

// Noexec clears the executable bit, regardless of prior builder calls.
func (f Flags) Noexec() Flags { f.execable = false; return f }

// IsWritable reports the current writable state.
func (f Flags) IsWritable() bool { return f.writable }

// IsExec reports the current executable state.
func (f Flags) IsExec() bool { return f.execable }

// KernelDefault is the flag set page-backed and linear-backed heaps
// map fresh kernel pages with: writable, never executable.
func KernelDefault() Flags { return Memory().Writable().Noexec() }

// PageTable is the root mutator the MMU drives: map/unmap are the only
// two ways to change the address space. A concrete
// implementation walks real page-table levels; this package only
// defines the contract and the batched invalidation queue so the rest
// of the core (boot, reclaim, the run loop's TLB flush) can depend on
// an interface instead of architecture detail.
type PageTable interface {
	// Map installs va -> pa for length bytes with the given flags.
	// Implementations choose 2 MiB or 4 KiB leaf mappings based on
	// alignment of va, pa and length.
	Map(va, pa, length uintptr, flags Flags) error
	// Unmap tears down the mapping covering [va, va+length).
	Unmap(va, length uintptr) error
}

// Invalidator is the architecture hook that actually flushes
// translations from the TLB, either locally (a single `invlpg`-style
// instruction per page) or globally (reload CR3/a full shootdown).
type Invalidator interface {
	InvalidatePage(va uintptr)
	InvalidateAll()
}

// ShootdownQueue batches TLB invalidations so they can be flushed once
// at a natural boundary instead of after every single unmap: flushed
// at entry to the run loop.
type ShootdownQueue struct {
	inv   Invalidator
	pages []uintptr
	all   bool
}

// NewShootdownQueue creates an empty batch bound to inv.
func NewShootdownQueue(inv Invalidator) *ShootdownQueue {
	return &ShootdownQueue{inv: inv}
}

// Page records that va needs invalidating before the next Flush.
func (q *ShootdownQueue) Page(va uintptr) {
	if q.all {
		return
	}
	q.pages = append(q.pages, va)
	// A large batch is cheaper to service with one global flush than
	// with hundreds of single-page invalidations.
	if len(q.pages) > 64 {
		q.all = true
		q.pages = q.pages[:0]
	}
}

// Flush issues every batched invalidation and resets the queue. The
// run loop calls this once per pass, after pausing the current thread
// and before draining bottom halves, when Pending reports work.
func (q *ShootdownQueue) Flush() {
	if q.all {
		q.inv.InvalidateAll()
	} else {
		for _, va := range q.pages {
			q.inv.InvalidatePage(va)
		}
	}
	q.pages = q.pages[:0]
	q.all = false
}

// Pending reports whether Flush would do anything. Useful for tests
// and for avoiding a pointless invalidation round in the run loop.
func (q *ShootdownQueue) Pending() bool {
	return q.all || len(q.pages) > 0
}

// AlignForMapping picks the largest leaf size (HugeSize or PageSize)
// that va, pa and length are all commonly aligned to, so Map
// implementations can prefer 2 MiB leaves when possible.
func AlignForMapping(va, pa, length uintptr) uintptr {
	if va%HugeSize == 0 && pa%HugeSize == 0 && length%HugeSize == 0 {
		return HugeSize
	}
	return PageSize
}

// HugePagesFor returns the number of 2 MiB pages needed to cover
// length bytes, rounding up — used by the direct hypervisor handoff
// path to size its identity mapping of the kernel image.
func HugePagesFor(length uintptr) uintptr {
	return util.Ceildiv(length, HugeSize)
}
