package mmu

import "testing"

func TestFlagsMonotoneWritableThenReadonly(t *testing.T) {
	f := Memory().Writable().Readonly()
	if f.IsWritable() {
		t.Fatal("Writable().Readonly() should leave the mapping read-only")
	}

	f2 := Memory().Readonly().Writable()
	if !f2.IsWritable() {
		t.Fatal("Readonly().Writable() should leave the mapping writable")
	}
}

func TestFlagsExecNoexec(t *testing.T) {
	f := Memory().Exec().Noexec()
	if f.IsExec() {
		t.Fatal("Exec().Noexec() should leave the mapping non-executable")
	}
}

func TestKernelDefaultIsWritableNoexec(t *testing.T) {
	f := KernelDefault()
	if !f.IsWritable() || f.IsExec() {
		t.Fatalf("KernelDefault() = %+v, want writable, non-exec", f)
	}
}

type fakeInvalidator struct {
	pages   []uintptr
	allHits int
}

func (f *fakeInvalidator) InvalidatePage(va uintptr) { f.pages = append(f.pages, va) }
func (f *fakeInvalidator) InvalidateAll()            { f.allHits++ }

func TestShootdownQueueBatchesThenFlushesPages(t *testing.T) {
	inv := &fakeInvalidator{}
	q := NewShootdownQueue(inv)
	q.Page(0x1000)
	q.Page(0x2000)
	if !q.Pending() {
		t.Fatal("expected pending invalidations")
	}
	q.Flush()
	if len(inv.pages) != 2 || inv.allHits != 0 {
		t.Fatalf("expected two page invalidations, got pages=%v all=%d", inv.pages, inv.allHits)
	}
	if q.Pending() {
		t.Fatal("queue should be empty after Flush")
	}
}

func TestShootdownQueueEscalatesToGlobalFlush(t *testing.T) {
	inv := &fakeInvalidator{}
	q := NewShootdownQueue(inv)
	for i := 0; i < 100; i++ {
		q.Page(uintptr(i) * PageSize)
	}
	q.Flush()
	if inv.allHits != 1 {
		t.Fatalf("expected a single global flush after a large batch, got %d", inv.allHits)
	}
	if len(inv.pages) != 0 {
		t.Fatalf("expected no per-page invalidations once escalated, got %d", len(inv.pages))
	}
}

func TestHugePagesForRoundsUp(t *testing.T) {
	if got := HugePagesFor(3 << 20); got != 2 {
		t.Fatalf("HugePagesFor(3MiB) = %d, want 2", got)
	}
	if got := HugePagesFor(4 << 20); got != 2 {
		t.Fatalf("HugePagesFor(4MiB) = %d, want 2", got)
	}
}

func TestAlignForMapping(t *testing.T) {
	if got := AlignForMapping(HugeSize, HugeSize, HugeSize); got != HugeSize {
		t.Fatalf("expected huge alignment, got %#x", got)
	}
	if got := AlignForMapping(PageSize, PageSize, PageSize); got != PageSize {
		t.Fatalf("expected page alignment, got %#x", got)
	}
}
