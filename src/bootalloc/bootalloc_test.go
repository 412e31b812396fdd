package bootalloc

import "testing"

type recordingHalt struct {
	msgs []string
}

func (r *recordingHalt) Halt(msg string) { r.msgs = append(r.msgs, msg) }

func TestAllocBumpsCursorAndAligns(t *testing.T) {
	h := &recordingHalt{}
	buf := make([]byte, Size)
	a := New(buf, h)

	p1 := a.Alloc(3)
	if len(p1) != 3 {
		t.Fatalf("len(p1) = %d, want 3", len(p1))
	}
	if a.Used()%Align != 0 {
		t.Fatalf("cursor %#x not aligned to %d after alloc", a.Used(), Align)
	}

	p2 := a.Alloc(Align)
	if &p1[0] == &p2[0] {
		t.Fatal("two allocations returned overlapping memory")
	}
	if len(h.msgs) != 0 {
		t.Fatalf("unexpected halt: %v", h.msgs)
	}
}

func TestAllocHaltsOnOverflow(t *testing.T) {
	h := &recordingHalt{}
	buf := make([]byte, Size)
	a := New(buf, h)

	a.Alloc(Size - Align)
	a.Alloc(Size) // must overflow and halt, not panic

	if len(h.msgs) == 0 {
		t.Fatal("expected Halt to be called on overflow")
	}
}

func TestNewHaltsOnUndersizedBuffer(t *testing.T) {
	h := &recordingHalt{}
	New(make([]byte, 16), h)
	if len(h.msgs) == 0 {
		t.Fatal("expected Halt to be called for an undersized backing buffer")
	}
}
