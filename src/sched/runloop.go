// Package sched implements the per-CPU cooperative run loop: the
// kernel lock, timer reprogramming, and the seven-step pass every CPU
// repeats forever.
package sched

import (
	"sync/atomic"

	"cpu"
	"mmu"
	"queue"
	"timer"
)

// Thunk is a zero-argument, zero-return deferred call — the unit held
// by bhqueue and runqueue.
type Thunk func()

// Clock is the platform timer: Now reads the current time in the same
// units as the timer heap's deadlines; Arm schedules the next
// one-shot wakeup timeout nanoseconds from now.
type Clock interface {
	Now() uint64
	Arm(timeout uint64)
}

// Runloop holds everything one CPU's run loop needs each pass: its
// own per-CPU state, the two global queues, the shared timer heap and
// kernel lock, the idle bitmap, and the full per-CPU array other CPUs
// are addressed through by id rather than by an owning pointer.
type Runloop struct {
	Info         *cpu.Info
	CPUs         []*cpu.Info
	Bhqueue      *queue.Queue[Thunk]
	Runqueue     *queue.Queue[Thunk]
	Timers       *timer.Heap
	Lock         *KernelLock
	Idle         *cpu.IdleBitmap
	Shootdown    *mmu.ShootdownQueue
	Interrupts   Interrupts
	Clock        Clock
	MemService   func()
	ShuttingDown *atomic.Bool

	// WaitForInterrupt blocks until an IPI or device interrupt
	// resumes this CPU (step 7). Tests substitute a function that
	// returns immediately, since there is no real interrupt
	// controller in this repository.
	WaitForInterrupt func()

	// OnMigration is called whenever this CPU steals or donates a
	// thread to another CPU, naming both CPU ids, so the move can be
	// logged; production code wires it to klog, tests wire it to a
	// recorder.
	OnMigration func(fromCPU, toCPU int)

	current *cpu.Thread // thread this CPU is currently resuming, if any
}

// Resume marks t as the thread this CPU is about to run; the next
// Pass's step 1 will call its Pause hook before doing anything else.
func (r *Runloop) Resume(t *cpu.Thread) {
	r.current = t
}

// Run repeats Pass forever and never returns on real hardware. It
// stops once ShuttingDown is observed set and the final Pass has run,
// so an in-flight thunk still gets to finish.
func (r *Runloop) Run() {
	for {
		r.Pass()
		if r.ShuttingDown != nil && r.ShuttingDown.Load() {
			return
		}
	}
}

// Pass runs exactly one iteration of the seven-step run-loop body. It
// returns the thread it dispatched, if any, so callers (and tests) can
// observe what happened without needing a real CPU to run it on.
func (r *Runloop) Pass() (dispatched *cpu.Thread) {
	// 1. Pause current thread.
	if r.current != nil {
		if r.current.Pause != nil {
			r.current.Pause()
		}
		r.current = nil
	}

	// 2. Disable interrupts; set state = KERNEL. Flush pending TLB
	// invalidations.
	r.Interrupts.Disable()
	r.Info.State = cpu.Kernel
	if r.Shootdown != nil && r.Shootdown.Pending() {
		r.Shootdown.Flush()
	}

	// 3. Drain bottom halves without the kernel lock.
	for {
		thunk, ok := r.Bhqueue.Dequeue()
		if !ok {
			break
		}
		thunk()
	}

	// 4. Try the kernel lock.
	timerUpdated := false
	if r.Lock.TryLock(r.Info) {
		now := r.Clock.Now()
		r.Timers.Service(now)
		for {
			thunk, ok := r.Runqueue.Dequeue()
			if !ok {
				break
			}
			thunk()
		}
		if r.MemService != nil {
			r.MemService()
		}
		if next, ok := r.Timers.Check(); ok {
			newLast, updated := ProgramTimer(next, now, r.Info.LastTimerUpdate, r.Clock)
			r.Info.LastTimerUpdate = newLast
			timerUpdated = updated
		}
		r.Lock.Unlock(r.Info)
	}

	// 5. Thread scheduling, unless shutting down.
	var thread *cpu.Thread
	if r.ShuttingDown == nil || !r.ShuttingDown.Load() {
		thread = r.scheduleThread()
	}

	// 6. Run the dispatched thread, if any; otherwise make sure a
	// local deadline is armed so this CPU doesn't monopolize work.
	if thread != nil {
		r.Info.State = cpu.User
		thread.Run()
		return thread
	}
	if !timerUpdated && len(r.CPUs) > 1 {
		r.Clock.Arm(RunloopTimerMax)
	}

	// 7. Nothing to do: go idle, set the idle bit, wait for an interrupt.
	r.Info.State = cpu.Idle
	r.Idle.Set(r.Info.ID)
	if r.WaitForInterrupt != nil {
		r.WaitForInterrupt()
	}
	return nil
}

// scheduleThread implements step 5: dequeue one thread from this
// CPU's own queue; on a miss, steal from an idle CPU first (cheaper,
// no preemption cost), then from a busy CPU currently in User state.
// On a hit with more work still queued, wake and donate to idle
// peers.
func (r *Runloop) scheduleThread() *cpu.Thread {
	t, ok := r.Info.ThreadQueue.Dequeue()
	if !ok {
		return r.steal()
	}

	if r.Info.ThreadQueue.Len() > 0 {
		r.wakeAndDonateToIdlePeers()
	}
	return &t
}

// steal searches [id+1, total) then [0, id) for an idle CPU with a
// queued thread, then the same order among non-idle CPUs in User
// state.
func (r *Runloop) steal() *cpu.Thread {
	total := len(r.CPUs)
	id := r.Info.ID

	order := make([]int, 0, total-1)
	for i := 1; i < total; i++ {
		order = append(order, (id+i)%total)
	}

	for _, c := range order {
		if !r.Idle.Test(c) {
			continue
		}
		if t, ok := r.CPUs[c].ThreadQueue.Dequeue(); ok {
			if r.OnMigration != nil {
				r.OnMigration(c, id)
			}
			return &t
		}
	}
	for _, c := range order {
		if r.CPUs[c].State != cpu.User {
			continue
		}
		if t, ok := r.CPUs[c].ThreadQueue.Dequeue(); ok {
			if r.OnMigration != nil {
				r.OnMigration(c, id)
			}
			return &t
		}
	}
	return nil
}

// wakeAndDonateToIdlePeers pushes one local thread onto every idle
// CPU's queue and wakes it, for when this CPU's own queue still has
// work left after dequeuing one thread.
func (r *Runloop) wakeAndDonateToIdlePeers() {
	total := len(r.CPUs)
	for c := 0; c < total; c++ {
		if c == r.Info.ID || !r.Idle.Test(c) {
			continue
		}
		if t, ok := r.Info.ThreadQueue.Dequeue(); ok {
			r.CPUs[c].ThreadQueue.Enqueue(t)
			if r.OnMigration != nil {
				r.OnMigration(r.Info.ID, c)
			}
		}
		WakeupCPU(r.Idle, c)
	}
}
