package kheap

import (
	"idheap"
	"mmu"
	"region"
)

// Heaps is the kernel heaps aggregate: established once during boot,
// never destroyed, every member's pointer stable for the life of the
// VM.
type Heaps struct {
	VirtualHuge  *idheap.Heap
	VirtualPage  *idheap.Heap
	Physical     *idheap.Heap
	PageBacked   *PageBacked
	LinearBacked *LinearBacked
	General      *Mcache
	Locked       *Locking
}

// Halter is the fatal-condition hook passed down to idheap.BuildPhysical;
// a missing physical region means there is nothing to run a kernel on.
type Halter interface {
	Halt(string)
}

// BuildConfig names the pieces the boot sequence must supply to
// assemble the kernel heaps: the region table handed over by the
// loader, the two fixed kernel VA windows, the identity-mapped base
// VA of the linear window, and the page-table mutator used to install
// page-backed mappings.
type BuildConfig struct {
	Regions     *region.Table
	VirtualHuge region.Region // carved into VirtualHuge
	VirtualPage region.Region // carved into VirtualPage
	LinearBase  uintptr
	PageTable   PageMapper
	Halt        Halter
}

// Build assembles the kernel heaps aggregate in dependency order:
// physical first (everything else borrows from it), then the two
// virtual windows, then the backed heaps layered on top, then the
// general mcache and its locked wrapper.
func Build(cfg BuildConfig) *Heaps {
	physical := idheap.BuildPhysical(cfg.Regions, cfg.Halt)

	virtualHuge := idheap.New("virtual_huge", mmu.HugeSize, nil, false)
	if err := virtualHuge.AddRange(cfg.VirtualHuge.Base, cfg.VirtualHuge.Length); err != nil {
		cfg.Halt.Halt("kheap: virtual_huge: " + err.Error())
	}

	virtualPage := idheap.New("virtual_page", mmu.PageSize, nil, false)
	if err := virtualPage.AddRange(cfg.VirtualPage.Base, cfg.VirtualPage.Length); err != nil {
		cfg.Halt.Halt("kheap: virtual_page: " + err.Error())
	}

	pageBacked := NewPageBacked(virtualPage, physical, cfg.PageTable)
	linearBacked := NewLinearBacked(physical, cfg.LinearBase)

	general := NewMcache(pageBacked)
	locked := NewLocking(general)

	return &Heaps{
		VirtualHuge:  virtualHuge,
		VirtualPage:  virtualPage,
		Physical:     physical,
		PageBacked:   pageBacked,
		LinearBacked: linearBacked,
		General:      general,
		Locked:       locked,
	}
}
