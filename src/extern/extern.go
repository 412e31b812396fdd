// Package extern declares the collaborator contracts this core calls
// out to but does not implement itself: storage attachment, firmware
// processor enumeration, virtio-mmio command-line forwarding, a timer
// source, and root configuration. Real driver/ACPI/filesystem code is
// out of scope; these interfaces are the seam a real platform plugs
// into.
package extern

// StorageAttacher attaches a block device discovered by the platform
// so the rest of the kernel can address it. No concrete filesystem or
// driver backs this in this repository.
type StorageAttacher interface {
	StorageAttach(name string, size uint64) error
}

// ProcessorSource enumerates enabled processors from firmware tables
// (the MADT on x86), used by SMP bring-up. Present returns the
// number of enabled LAPIC/LAPICx2 entries.
type ProcessorSource interface {
	Present() int
}

// VirtioMMIOTarget receives cmdline-forwarded virtio_mmio.* device
// descriptions so a platform can instantiate the devices it describes.
type VirtioMMIOTarget interface {
	VirtioMMIO(spec string) error
}

// TimerSource is the platform's hardware timer: arming a one-shot
// wakeup timeout from now and reading the current time, both in the
// same units as the timer heap's deadlines.
type TimerSource interface {
	Now() uint64
	Arm(timeout uint64)
}

// RootConfig is the platform's boot-time policy surface: whether a VM
// shutdown request should reboot instead of halting, and whether a
// halt should actually stop the VM (vs. spin, useful under a
// debugger).
type RootConfig interface {
	RebootOnExit() bool
	VMHalt() bool
}
