// Package boot implements the two-mode boot sequence, new-stack
// initialization, SMP bring-up, and VM exit that tie every other
// package into a running kernel.
package boot

import (
	"encoding/binary"

	"region"
)

// Boot-params byte offsets for the direct hypervisor handoff path —
// the Linux/KVM "zero page" layout a hypervisor that skips the staged
// loader hands the kernel directly.
const (
	offE820Count    = 0x01E8
	offBootFlag     = 0x01FE
	offHeaderMagic  = 0x0202
	offCmdlinePtr   = 0x0228
	offCmdlineSize  = 0x0238
	offE820Table    = 0x02D0
	bootFlagValue   = 0xAA55
	headerMagic     = 0x53726448
	e820EntrySize   = 20 // {base u64, length u64, type u32}
	e820MaxEntries  = 128
)

// IsDirectHandoff reports whether params (a view over the boot-params
// page) matches the direct hypervisor handoff signature: the boot
// flag and header magic fields set to their expected values.
func IsDirectHandoff(params []byte) bool {
	if len(params) < offE820Table {
		return false
	}
	flag := binary.LittleEndian.Uint16(params[offBootFlag:])
	magic := binary.LittleEndian.Uint32(params[offHeaderMagic:])
	return flag == bootFlagValue && magic == headerMagic
}

// E820Entry is one raw firmware memory-map entry.
type E820Entry struct {
	Base, Length uint64
	Type         uint32
}

// ParseE820 reads the e820 table out of params: the entry count is an
// unsigned byte at offE820Count, and each 20-byte entry follows at
// offE820Table.
func ParseE820(params []byte) []E820Entry {
	count := int(params[offE820Count])
	if count > e820MaxEntries {
		count = e820MaxEntries
	}
	entries := make([]E820Entry, 0, count)
	for i := 0; i < count; i++ {
		off := offE820Table + i*e820EntrySize
		if off+e820EntrySize > len(params) {
			break
		}
		e := E820Entry{
			Base:   binary.LittleEndian.Uint64(params[off:]),
			Length: binary.LittleEndian.Uint64(params[off+8:]),
			Type:   binary.LittleEndian.Uint32(params[off+16:]),
		}
		entries = append(entries, e)
	}
	return entries
}

// Cmdline extracts the command-line pointer and size fields. The
// pointer is a physical address the caller resolves to a byte slice
// (this package has no notion of "all of physical memory" to index
// into); the size is how many bytes to read from there.
func Cmdline(params []byte) (ptr uint32, size uint32) {
	return binary.LittleEndian.Uint32(params[offCmdlinePtr:]), binary.LittleEndian.Uint32(params[offCmdlineSize:])
}

// e820TypeRAM is the firmware memory-map type for usable RAM. Every
// other e820 type (ACPI reclaimable, NVS, reserved, ...) is memory the
// firmware has marked unusable and must not be handed to the physical
// allocator.
const e820TypeRAM = 1

// BuildRegionsFromE820 converts the firmware memory map into the
// region table the rest of boot operates on, splitting the region
// that contains the kernel image into free space below and free space
// above it, reserving transient page-table pages directly below the
// kernel.
func BuildRegionsFromE820(entries []E820Entry, kernelBasePhys, kernelSize uint64, pageSize uint64) *region.Table {
	t := region.New()
	for _, e := range entries {
		if e.Length == 0 {
			continue
		}
		if e.Type != e820TypeRAM || !covers(e, kernelBasePhys) {
			t.Add(region.Region{Type: kindForE820Type(e.Type), Base: uintptr(e.Base), Length: uintptr(e.Length)})
			continue
		}
		splitAroundKernel(t, e, kernelBasePhys, kernelSize, pageSize)
	}
	return t
}

func kindForE820Type(t uint32) region.Kind {
	if t == e820TypeRAM {
		return region.Physical
	}
	// Non-RAM firmware types (ACPI NVS/reclaimable, reserved, ...)
	// have no dedicated region.Kind of their own in this core's
	// scope; they're tracked as Reclaim only when the loader already
	// says so elsewhere, so a raw non-RAM e820 entry is simply not
	// added to the physical allocator. Returning Physical here would
	// hand out memory the firmware marked unusable.
	return region.Reclaim
}

func covers(e E820Entry, addr uint64) bool {
	return e.Base <= addr && addr < e.Base+e.Length
}

// splitAroundKernel reserves two pages immediately below the kernel
// image for a transient PDPT/PDT, then adds whatever remains below
// that reservation and whatever remains above the kernel (truncated to
// start page-aligned after the kernel) as free PHYSICAL regions.
func splitAroundKernel(t *region.Table, e E820Entry, kernelBasePhys, kernelSize, pageSize uint64) {
	trampolineReserve := 2 * pageSize
	belowEnd := kernelBasePhys - trampolineReserve
	if belowEnd > e.Base {
		t.Add(region.Region{Type: region.Physical, Base: uintptr(e.Base), Length: uintptr(belowEnd - e.Base)})
	}

	kernelEnd := kernelBasePhys + kernelSize
	aboveStart := roundUpU64(kernelEnd, pageSize)
	rangeEnd := e.Base + e.Length
	if rangeEnd > aboveStart {
		t.Add(region.Region{Type: region.Physical, Base: uintptr(aboveStart), Length: uintptr(rangeEnd - aboveStart)})
	}
}

func roundUpU64(v, align uint64) uint64 {
	return (v + align - 1) / align * align
}
