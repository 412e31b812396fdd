package sched

import "cpu"

// IPISender is the architecture hook for actually interrupting other
// CPUs. SendWakeup targets a single CPU with the ignored wakeup
// vector (its only purpose is to break wait_for_interrupt); SendHalt
// broadcasts the shutdown IPI.
type IPISender interface {
	SendWakeup(cpuID int)
	SendHalt()
}

// WakeupCPU clears cpu's idle bit (harmless if it was already clear).
// It sends no IPI: a CPU already blocked in wait_for_interrupt is not
// interrupted by this call.
func WakeupCPU(idle *cpu.IdleBitmap, cpuID int) {
	idle.Clear(cpuID)
}

// WakeupOrInterruptAll clears every idle bit and sends the wakeup IPI
// to every other CPU — used when there's new global work (a runqueue
// push, a registered timer) and no specific CPU is the obvious
// target.
func WakeupOrInterruptAll(idle *cpu.IdleBitmap, selfID, total int, send IPISender) {
	for c := 0; c < total; c++ {
		if c == selfID {
			continue
		}
		idle.Clear(c)
		send.SendWakeup(c)
	}
}

// Shutdown marks the loop shutting down and broadcasts the shutdown
// IPI; receiving CPUs invoke machine_halt. No new thread is dispatched
// by any CPU after this, though an in-flight timer callback still runs
// to completion.
func Shutdown(r *Runloop, send IPISender) {
	if r.ShuttingDown != nil {
		r.ShuttingDown.Store(true)
	}
	send.SendHalt()
}
