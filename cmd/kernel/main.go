// Command kernel is the single-address-space entry point: it wires
// boot-time memory initialization to the per-CPU run loop and starts
// every CPU. It never returns on real hardware.
package main

import (
	"os"

	"boot"
	"cpu"
	"extern"
	"kheap"
	"klog"
	"mmu"
	"queue"
	"region"
	"sched"
	"timer"
)

const threadQueueCapacity = 256

// platform is the seam every architecture-specific primitive this
// core cannot express portably plugs into: stack switching, firmware
// table walks, interrupt masking, IPIs, TLB invalidation, and the
// platform clock. A real target supplies one concrete implementation.
// Here SwitchStack and Reserve, which have no portable implementation,
// panic on first use so a half-ported platform fails loudly at that
// call site; the remaining hooks are no-op stubs.
type platform struct {
	log *klog.Logger
}

func (p *platform) SwitchStack(newStackTop uintptr, continuation func()) {
	panic("kernel: SwitchStack has no portable implementation; a platform must supply one")
}

func (p *platform) Reserve(tag string, size uintptr) uintptr {
	panic("kernel: TaggedRegions.Reserve has no portable implementation")
}

func (p *platform) InitManagement(kh *kheap.Heaps) {}

func (p *platform) KernelRuntimeInit(kh *kheap.Heaps) {
	p.log.Printf("kernel: runtime init complete, entering run loop\n")
}

func (p *platform) VirtioMMIO(spec string) error {
	p.log.Printf("kernel: virtio_mmio device requested: %s\n", spec)
	return nil
}

func (p *platform) Enable()  {}
func (p *platform) Disable() {}

func (p *platform) Now() uint64          { return 0 }
func (p *platform) Arm(timeout uint64)   {}
func (p *platform) SendWakeup(cpuID int) {}
func (p *platform) SendHalt()            {}

func (p *platform) InvalidatePage(va uintptr) {}
func (p *platform) InvalidateAll()            {}

func (p *platform) Map(va, pa, length uintptr, flags mmu.Flags) error { return nil }
func (p *platform) Unmap(va, length uintptr) error                   { return nil }

func (p *platform) RebootOnExit() bool { return false }
func (p *platform) VMHalt() bool       { return true }

var (
	_ extern.RootConfig       = (*platform)(nil)
	_ extern.VirtioMMIOTarget = (*platform)(nil)
	_ extern.TimerSource      = (*platform)(nil)
	_ mmu.Invalidator         = (*platform)(nil)
)

type haltLogger struct{ log *klog.Logger }

func (h haltLogger) Halt(msg string) {
	h.log.Printf("kernel: fatal: %s\n", msg)
	os.Exit(1)
}

func main() {
	log := klog.New(os.Stderr)
	plat := &platform{log: log}

	// Boot-time region layout: in the absence of a real loader, a
	// single RAM region is assumed. A direct-handoff platform would
	// instead call boot.IsDirectHandoff/ParseE820/BuildRegionsFromE820
	// on the zero page before reaching this point.
	regions := region.New(
		region.Region{Type: region.Physical, Base: 0x100000, Length: 0x8000000},
	)

	cfg := boot.Config{
		Heaps: kheap.BuildConfig{
			Regions:     regions,
			VirtualHuge: region.Region{Base: 0xffff900000000000, Length: 1 << 34},
			VirtualPage: region.Region{Base: 0xffffa00000000000, Length: 1 << 34},
			LinearBase:  0xffff800000000000,
			PageTable:   plat,
			Halt:        haltLogger{log},
		},
		Stack:      plat,
		Tagged:     plat,
		Management: plat,
		Runtime:    plat,
		ClockNow:   plat.Now,
		Log:        log,
		VirtioMMIO: plat,
	}

	kh := boot.InitService(cfg)

	present, usedDefault := boot.CountProcessors(nil)
	if usedDefault {
		log.Printf("kernel: MADT absent, defaulting to 1 processor\n")
	}

	idle := &cpu.IdleBitmap{}
	cpus := make([]*cpu.Info, present)
	for i := range cpus {
		cpus[i] = cpu.NewInfo(i, threadQueueCapacity)
	}

	timers := timer.New()
	lock := sched.NewKernelLock()
	shootdown := mmu.NewShootdownQueue(plat)

	starter := &coreStarter{
		cpus:      cpus,
		idle:      idle,
		timers:    timers,
		lock:      lock,
		shootdown: shootdown,
		plat:      plat,
		log:       log,
		kh:        kh,
	}
	boot.StartSecondaryCores(present, kh.PageBacked, starter)

	// The boot processor never goes through NewCPU (that sequence is
	// only for APs that start from a cold trampoline), so it sets its
	// own Idle state here before entering its run loop for the first
	// time.
	cpus[0].State = cpu.Idle
	starter.enter(0)
}

// coreStarter adapts the assembled kernel state into boot.APStarter:
// each application processor's NewCPU sequence ends by entering its
// own run loop, same as the boot processor.
type coreStarter struct {
	cpus      []*cpu.Info
	idle      *cpu.IdleBitmap
	timers    *timer.Heap
	lock      *sched.KernelLock
	shootdown *mmu.ShootdownQueue
	plat      *platform
	log       *klog.Logger
	kh        *kheap.Heaps
}

func (s *coreStarter) StartCPU(id int, trampolineVA uintptr) {
	boot.NewCPU(s.cpus[id], s, func() { s.enter(id) })
}

func (s *coreStarter) InitTimer()          {}
func (s *coreStarter) ResetMXCSR(v uint32) {}

func (s *coreStarter) enter(id int) {
	rl := &sched.Runloop{
		Info:       s.cpus[id],
		CPUs:       s.cpus,
		Bhqueue:    queue.New[sched.Thunk](threadQueueCapacity),
		Runqueue:   queue.New[sched.Thunk](threadQueueCapacity),
		Timers:     s.timers,
		Lock:       s.lock,
		Idle:       s.idle,
		Shootdown:  s.shootdown,
		Interrupts: s.plat,
		Clock:      s.plat,
		OnMigration: func(from, to int) {
			s.log.Printf("kernel: migrated thread cpu%d -> cpu%d\n", from, to)
		},
	}
	rl.Run()
}
