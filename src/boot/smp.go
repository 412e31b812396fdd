package boot

import (
	"cpu"
	"kheap"
)

// MADTSource is the firmware processor-enumeration collaborator: each
// call to Next returns whether another MADT entry exists, its kind,
// and whether its ENABLED flag is set.
type MADTSource interface {
	// Next advances to the next MADT entry. ok is false once the
	// table is exhausted.
	Next() (kind MADTEntryKind, enabled bool, ok bool)
}

// MADTEntryKind distinguishes the two local-APIC entry kinds
// count_processors cares about; every other MADT entry kind is
// ignored.
type MADTEntryKind int

const (
	MADTOther MADTEntryKind = iota
	MADTLAPIC
	MADTLAPICx2
)

// CountProcessors walks src counting LAPIC/LAPICx2 entries with their
// ENABLED flag set. If src is nil (no MADT present), it defaults to 1
// and reports that it did so, so the caller can log a warning.
func CountProcessors(src MADTSource) (present int, usedDefault bool) {
	if src == nil {
		return 1, true
	}
	count := 0
	for {
		kind, enabled, ok := src.Next()
		if !ok {
			break
		}
		if !enabled {
			continue
		}
		if kind == MADTLAPIC || kind == MADTLAPICx2 {
			count++
		}
	}
	if count == 0 {
		return 1, true
	}
	return count, false
}

// APStarter is the architecture hook that actually brings up an
// application processor: it loads the trampoline at trampolineVA and
// sends the INIT/SIPI sequence that starts execution there.
type APStarter interface {
	StartCPU(id int, trampolineVA uintptr)
}

// trampolineSize is generous for an AP real-mode trampoline blob; the
// exact bytes are architecture-specific and out of this core's scope.
const trampolineSize = 4096

// StartSecondaryCores allocates a trampoline from the page-backed
// heap, starts every AP in [1, present), then frees the trampoline.
// It creates no CPUInfo records — StartCPU is responsible for making
// the AP run NewCPU on its own stack.
func StartSecondaryCores(present int, pageBacked *kheap.PageBacked, start APStarter) {
	trampoline := pageBacked.Alloc(trampolineSize)
	if trampoline == kheap.Invalid {
		panic("boot: no memory for AP trampoline")
	}
	for i := 1; i < present; i++ {
		start.StartCPU(i, trampoline)
	}
	pageBacked.Dealloc(trampoline, trampolineSize)
}

// PerCPUTimerInit and MXCSR reset are architecture operations an AP
// performs on itself before entering the run loop; NewCPU sequences
// them.
type PerCPUInit interface {
	InitTimer()
	ResetMXCSR(value uint32)
}

// mxcsrDefault is the MXCSR reset value: masked exceptions,
// round-to-nearest.
const mxcsrDefault = 0x1F80

// NewCPU runs the sequence each application processor executes once
// it starts: platform per-CPU timer init, MXCSR reset, then enter the
// run loop via sleep, the caller's hook for "kernel_sleep() — which
// enters the run loop on the next interrupt."
func NewCPU(info *cpu.Info, init PerCPUInit, enterRunloop func()) {
	init.InitTimer()
	init.ResetMXCSR(mxcsrDefault)
	info.State = cpu.Idle
	enterRunloop()
}
