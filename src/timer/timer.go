// Package timer implements the timer heap: a priority queue of
// absolute-deadline callbacks keyed by clock domain, serviced under
// the kernel lock by the run loop each pass.
package timer

import "container/heap"

// Handler runs when a timer's deadline has passed. now is the clock
// reading timer_service observed the timer at.
type Handler func(now uint64)

// Clock identifies which clock domain a deadline is expressed in —
// e.g. monotonic vs. a platform RTC. The heap itself is agnostic to
// what a Clock means; it only orders timers within calls that share
// one.
type Clock int

// Timer is one registered deadline. Interval == 0 means one-shot: it
// is removed from the heap before its handler runs and never
// reappears. A non-zero Interval means periodic: after the handler
// runs, Deadline += Interval and the timer is reinserted.
type Timer struct {
	Clock    Clock
	Deadline uint64
	Interval uint64
	Handler  Handler

	index int // heap.Interface bookkeeping
}

// Heap is a min-heap of *Timer ordered by Deadline, implementing
// container/heap.Interface. There is no third-party priority-queue
// library anywhere in the corpus (see DESIGN.md); container/heap is
// the idiomatic stdlib fit for a boot-time, single-process priority
// queue like this one.
type Heap struct {
	items []*Timer
}

// New creates an empty timer heap.
func New() *Heap {
	h := &Heap{}
	heap.Init(h)
	return h
}

// Len, Less, Swap, Push, Pop implement heap.Interface.
func (h *Heap) Len() int { return len(h.items) }

func (h *Heap) Less(i, j int) bool { return h.items[i].Deadline < h.items[j].Deadline }

func (h *Heap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *Heap) Push(x any) {
	t := x.(*Timer)
	t.index = len(h.items)
	h.items = append(h.items, t)
}

func (h *Heap) Pop() any {
	n := len(h.items)
	t := h.items[n-1]
	h.items[n-1] = nil
	h.items = h.items[:n-1]
	t.index = -1
	return t
}

// Register inserts a new timer. If absolute is true, val is already
// an absolute deadline in clockID's domain; otherwise val is a
// relative delay and now must be the current reading of that clock.
// It returns the Timer so a caller can identify it later — there is
// no cancel token; callers that want cancellation have their handler
// check state and no-op.
func (h *Heap) Register(clockID Clock, now, val uint64, absolute bool, interval uint64, handler Handler) *Timer {
	deadline := val
	if !absolute {
		deadline = now + val
	}
	t := &Timer{Clock: clockID, Deadline: deadline, Interval: interval, Handler: handler}
	heap.Push(h, t)
	return t
}

// Check is a pure observation of the next deadline across every
// registered timer, or (0, false) if the heap is empty. It must not
// mutate the heap.
func (h *Heap) Check() (next uint64, ok bool) {
	if len(h.items) == 0 {
		return 0, false
	}
	return h.items[0].Deadline, true
}

// Service dequeues and runs every timer whose deadline is <= now,
// re-inserting periodic timers at deadline+interval. One-shot timers
// are popped before their handler runs, so a handler that registers a
// new timer never observes its own still-pending entry.
func (h *Heap) Service(now uint64) {
	for len(h.items) > 0 && h.items[0].Deadline <= now {
		t := heap.Pop(h).(*Timer)
		t.Handler(now)
		if t.Interval != 0 {
			t.Deadline += t.Interval
			heap.Push(h, t)
		}
	}
}
