package sched

import (
	"sync"
	"sync/atomic"

	"cpu"
)

// Interrupts is the architecture hook for toggling the local
// interrupt-enable flag, used by KernelLock.Lock to spin with
// interrupts enabled so interrupts can still be serviced and bottom
// halves keep progressing while this CPU waits for the lock.
type Interrupts interface {
	Enable()
	Disable()
}

// KernelLock is the single global mutex guarding the timer heap,
// consumption of the global runqueue, and memory-manager service. At
// most one CPU holds it at any time.
type KernelLock struct {
	mu     sync.Mutex
	holder atomic.Int64 // CPU id of the current holder, -1 if unlocked
}

// NewKernelLock returns an unlocked KernelLock.
func NewKernelLock() *KernelLock {
	k := &KernelLock{}
	k.holder.Store(-1)
	return k
}

// Lock acquires the kernel lock. cpuState must be Kernel — calling
// from Interrupt state is a programming error and panics outright.
// While spinning, irq is enabled so interrupts and bottom halves keep
// progressing; it is disabled again before Lock returns.
func (k *KernelLock) Lock(info *cpu.Info, irq Interrupts) {
	if info.State == cpu.Interrupt {
		panic("sched: kern_lock called from INTERRUPT state")
	}
	for !k.mu.TryLock() {
		irq.Enable()
		irq.Disable()
	}
	k.holder.Store(int64(info.ID))
	info.HaveKernelLock = true
}

// TryLock attempts to acquire the kernel lock without spinning. It
// must not be called from Interrupt state.
func (k *KernelLock) TryLock(info *cpu.Info) bool {
	if info.State == cpu.Interrupt {
		panic("sched: kern_try_lock called from INTERRUPT state")
	}
	if !k.mu.TryLock() {
		return false
	}
	k.holder.Store(int64(info.ID))
	info.HaveKernelLock = true
	return true
}

// Unlock releases the kernel lock. It must be called by the same CPU
// that holds it, and only when info.HaveKernelLock is true.
func (k *KernelLock) Unlock(info *cpu.Info) {
	if !info.HaveKernelLock || k.holder.Load() != int64(info.ID) {
		panic("sched: kern_unlock called without holding the kernel lock")
	}
	info.HaveKernelLock = false
	k.holder.Store(-1)
	k.mu.Unlock()
}

// HeldBy reports the CPU id currently holding the lock, or -1 if it
// is free. Used by tests to check the "at most one holder" invariant.
func (k *KernelLock) HeldBy() int {
	return int(k.holder.Load())
}
