package boot

import (
	"testing"

	"cpu"
	"idheap"
	"kheap"
	"mmu"
)

type fakeMADT struct {
	entries []madtEntry
	i       int
}

type madtEntry struct {
	kind    MADTEntryKind
	enabled bool
}

func (f *fakeMADT) Next() (MADTEntryKind, bool, bool) {
	if f.i >= len(f.entries) {
		return MADTOther, false, false
	}
	e := f.entries[f.i]
	f.i++
	return e.kind, e.enabled, true
}

func TestCountProcessorsCountsEnabledLAPICEntries(t *testing.T) {
	src := &fakeMADT{entries: []madtEntry{
		{MADTLAPIC, true},
		{MADTLAPIC, false}, // disabled, not counted
		{MADTLAPICx2, true},
		{MADTOther, true}, // wrong kind, not counted
	}}
	present, usedDefault := CountProcessors(src)
	if present != 2 || usedDefault {
		t.Fatalf("CountProcessors = (%d, %v), want (2, false)", present, usedDefault)
	}
}

func TestCountProcessorsDefaultsToOneWhenMADTAbsent(t *testing.T) {
	present, usedDefault := CountProcessors(nil)
	if present != 1 || !usedDefault {
		t.Fatalf("CountProcessors(nil) = (%d, %v), want (1, true)", present, usedDefault)
	}
}

func TestCountProcessorsDefaultsToOneWhenNoneEnabled(t *testing.T) {
	src := &fakeMADT{entries: []madtEntry{{MADTLAPIC, false}}}
	present, usedDefault := CountProcessors(src)
	if present != 1 || !usedDefault {
		t.Fatalf("CountProcessors with no enabled entries = (%d, %v), want (1, true)", present, usedDefault)
	}
}

type fakeAPStarter struct {
	started []int
}

func (f *fakeAPStarter) StartCPU(id int, trampolineVA uintptr) {
	f.started = append(f.started, id)
}

type fakeMapperSMP struct{}

func (fakeMapperSMP) Map(va, pa, length uintptr, flags mmu.Flags) error { return nil }
func (fakeMapperSMP) Unmap(va, length uintptr) error                    { return nil }

func newTestPageBackedSMP(t *testing.T) *kheap.PageBacked {
	t.Helper()
	virtual := idheap.New("vpage", mmu.PageSize, nil, false)
	if err := virtual.AddRange(0x400000000, 0x1000000); err != nil {
		t.Fatalf("AddRange virtual: %v", err)
	}
	physical := idheap.New("phys", mmu.PageSize, nil, false)
	if err := physical.AddRange(0x100000, 0x1000000); err != nil {
		t.Fatalf("AddRange physical: %v", err)
	}
	return kheap.NewPageBacked(virtual, physical, fakeMapperSMP{})
}

func TestStartSecondaryCoresStartsEveryAPAndFreesTrampoline(t *testing.T) {
	pb := newTestPageBackedSMP(t)

	start := &fakeAPStarter{}
	StartSecondaryCores(4, pb, start)

	if len(start.started) != 3 {
		t.Fatalf("started %v, want 3 APs (ids 1..3)", start.started)
	}
	for i, id := range start.started {
		if id != i+1 {
			t.Fatalf("started[%d] = %d, want %d", i, id, i+1)
		}
	}

	// The trampoline's VA should have been returned to the heap: a
	// fresh allocation of the same size should succeed.
	va := pb.Alloc(trampolineSize)
	if va == kheap.Invalid {
		t.Fatal("trampoline was not freed back to the page-backed heap")
	}
}

func TestStartSecondaryCoresWithNoAPsStillFreesTrampoline(t *testing.T) {
	pb := newTestPageBackedSMP(t)
	start := &fakeAPStarter{}
	StartSecondaryCores(1, pb, start)

	if len(start.started) != 0 {
		t.Fatalf("expected no APs started for present=1, got %v", start.started)
	}
}

type fakePerCPUInit struct {
	timerInit bool
	mxcsr     uint32
}

func (f *fakePerCPUInit) InitTimer()          { f.timerInit = true }
func (f *fakePerCPUInit) ResetMXCSR(v uint32) { f.mxcsr = v }

func TestNewCPUSequencesInitThenEntersRunloop(t *testing.T) {
	info := cpu.NewInfo(1, 4)
	init := &fakePerCPUInit{}
	entered := false

	NewCPU(info, init, func() { entered = true })

	if !init.timerInit {
		t.Fatal("NewCPU did not initialize the per-CPU timer")
	}
	if init.mxcsr != mxcsrDefault {
		t.Fatalf("MXCSR reset to %#x, want %#x", init.mxcsr, mxcsrDefault)
	}
	if info.State != cpu.Idle {
		t.Fatalf("CPU state = %v, want Idle before entering the run loop", info.State)
	}
	if !entered {
		t.Fatal("NewCPU did not invoke enterRunloop")
	}
}
