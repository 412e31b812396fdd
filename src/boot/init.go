package boot

import (
	"region"

	"bootalloc"
	"cpufeat"
	"kheap"
	"klog"
	"mmu"
)

// stackPages is the size of the permanent kernel stack allocated
// during new-stack init.
const stackPages = 32

// StackSwitcher is the architecture hook that switches onto a new
// stack and resumes execution at continuation — there is no way to
// express "jump to a new stack pointer" in portable Go, so this is a
// collaborator boundary.
type StackSwitcher interface {
	SwitchStack(newStackTop uintptr, continuation func())
}

// TaggedRegions carves out a per-tag virtual-address region (tuples,
// symbols, each in its own tagged region) from the linear-backed heap.
type TaggedRegions interface {
	Reserve(tag string, size uintptr) uintptr
}

// ManagementInit is the collaborator that brings up whatever "system
// management" means on the target platform; this core has no concrete
// implementation of it.
type ManagementInit interface {
	InitManagement(kh *kheap.Heaps)
}

// RuntimeEntry is kernel_runtime_init: the final collaborator call in
// new-stack init. It does not return on a real platform; this package
// only ever calls it once, as the last step.
type RuntimeEntry interface {
	KernelRuntimeInit(kh *kheap.Heaps)
}

// Config bundles every collaborator and architecture hook the boot
// sequence needs, so InitService doesn't grow an unreadable
// positional parameter list.
type Config struct {
	Heaps      kheap.BuildConfig
	Stack      StackSwitcher
	Tagged     TaggedRegions
	Management ManagementInit
	Runtime    RuntimeEntry
	ClockNow   func() uint64
	Log        *klog.Logger
	Cmdline    string
	VirtioMMIO VirtioMMIOParser
}

// InitService runs both boot modes' common tail: init_kernel_heaps,
// cmdline_parse, allocate and switch to the permanent stack, then
// new-stack init. It returns the assembled kernel heaps so a caller
// (SMP bring-up, tests) can inspect the result;
// Runtime.KernelRuntimeInit is the true, non-returning end of boot on
// real hardware.
func InitService(cfg Config) *kheap.Heaps {
	kh := kheap.Build(cfg.Heaps)

	if cfg.VirtioMMIO != nil {
		if err := ParseCmdline(cfg.Cmdline, cfg.VirtioMMIO); err != nil {
			cfg.Log.Printf("boot: cmdline parse: %v\n", err)
		}
	}

	stackBase := kh.General.Alloc(stackPages * mmu.PageSize)
	if stackBase == kheap.Invalid {
		panic("boot: could not allocate the permanent stack")
	}
	stackTop := stackBase + stackPages*mmu.PageSize

	cfg.Stack.SwitchStack(stackTop, func() {
		initServiceNewStack(cfg, kh)
	})

	return kh
}

// initServiceNewStack runs on the permanent stack: carve the tagged
// regions, locate SMBIOS, bring up management, detect hardware RNG and
// CPU features, then hand off to the runtime collaborator.
func initServiceNewStack(cfg Config, kh *kheap.Heaps) {
	if cfg.Tagged != nil {
		cfg.Tagged.Reserve("tuples", 0)
		cfg.Tagged.Reserve("symbols", 0)
	}

	if _, ok := cfg.Heaps.Regions.First(region.Smbios); !ok {
		cfg.Log.Printf("boot: no SMBIOS region present\n")
	}

	if cfg.Management != nil {
		cfg.Management.InitManagement(kh)
	}

	features := cpufeat.Detect()
	seeder := cpufeat.NewSeeder(cfg.ClockNow)
	_ = features
	_ = seeder.Seed() // the seed is computed here and not stored

	if cfg.Runtime != nil {
		cfg.Runtime.KernelRuntimeInit(kh)
	}
}

// BootAlloc is re-exported for callers that need the bootstrap bump
// allocator before any heap exists — e.g. to allocate the region
// table's own backing storage during staged handoff parsing, before
// init_kernel_heaps runs.
type BootAlloc = bootalloc.Allocator
