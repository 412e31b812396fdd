package timer

import "testing"

func TestCheckIsPureAndReportsEarliestDeadline(t *testing.T) {
	h := New()
	h.Register(0, 0, 100, true, 0, func(uint64) {})
	h.Register(0, 0, 50, true, 0, func(uint64) {})

	next, ok := h.Check()
	if !ok || next != 50 {
		t.Fatalf("Check() = (%d, %v), want (50, true)", next, ok)
	}
	// Calling Check again must not have mutated anything.
	next2, ok2 := h.Check()
	if next != next2 || ok != ok2 {
		t.Fatal("Check() is not idempotent")
	}
}

func TestServiceRunsExpiredAndLeavesFutureTimers(t *testing.T) {
	h := New()
	var ran []uint64
	h.Register(0, 0, 10, true, 0, func(now uint64) { ran = append(ran, 10) })
	h.Register(0, 0, 20, true, 0, func(now uint64) { ran = append(ran, 20) })
	h.Register(0, 0, 30, true, 0, func(now uint64) { ran = append(ran, 30) })

	h.Service(20)
	if len(ran) != 2 || ran[0] != 10 || ran[1] != 20 {
		t.Fatalf("ran = %v, want [10 20]", ran)
	}
	next, ok := h.Check()
	if !ok || next != 30 {
		t.Fatalf("Check() after Service = (%d, %v), want (30, true)", next, ok)
	}
}

func TestPeriodicTimerReinsertsAtDeadlinePlusInterval(t *testing.T) {
	h := New()
	fires := 0
	h.Register(0, 0, 10, true, 5, func(uint64) { fires++ })

	h.Service(10)
	if fires != 1 {
		t.Fatalf("fires = %d, want 1", fires)
	}
	next, ok := h.Check()
	if !ok || next != 15 {
		t.Fatalf("Check() after first fire = (%d, %v), want (15, true)", next, ok)
	}

	h.Service(15)
	if fires != 2 {
		t.Fatalf("fires = %d, want 2", fires)
	}
}

// Exercises timer reprogramming: two timers at now+1ms and now+5ms;
// after Service at a time before either has expired, Check still
// reports the 1ms deadline, and after the first fires, Check reports
// the remaining ~4ms.
func TestTimerReprogrammingScenario(t *testing.T) {
	h := New()
	const now = uint64(1_000_000) // arbitrary base, nanoseconds
	h.Register(0, now, now+1_000_000, true, 0, func(uint64) {})
	h.Register(0, now, now+5_000_000, true, 0, func(uint64) {})

	h.Service(now) // neither timer has expired yet
	next, ok := h.Check()
	if !ok || next != now+1_000_000 {
		t.Fatalf("Check() before any fire = %d, want %d", next, now+1_000_000)
	}

	h.Service(now + 1_000_000)
	next, ok = h.Check()
	if !ok || next != now+5_000_000 {
		t.Fatalf("Check() after first fire = %d, want %d", next, now+5_000_000)
	}
}

func TestOneShotTimerRemovedBeforeHandlerRuns(t *testing.T) {
	h := New()
	var sawLen int
	h.Register(0, 0, 10, true, 0, func(uint64) { sawLen = h.Len() })
	h.Service(10)
	if sawLen != 0 {
		t.Fatalf("heap length during handler = %d, want 0 (popped before running)", sawLen)
	}
}
