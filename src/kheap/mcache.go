package kheap

// slabSize is the chunk mcache reserves from its parent heap each
// time a size class runs out of free blocks.
const slabSize = 2 << 20

// classSizes are the size classes mcache serves directly; a request is
// rounded up to the smallest class that holds it. Anything larger than the top class is satisfied straight from the
// parent heap instead of being cached.
var classSizes = [...]uintptr{
	16, 32, 48, 64, 96, 128, 192, 256, 384, 512, 768, 1024, 1536, 2048, 3072, 4096,
}

// class holds the free blocks for one size class, plus the slabs it
// has carved them out of (so Destroy can return everything).
type class struct {
	size  uintptr
	free  []uintptr
	slabs []uintptr
}

// Mcache is a segregated size-class allocator over a parent heap: an
// allocation that fits one of classSizes is served from that class's
// free list, refilling from a fresh slab of the parent when the list
// runs dry; anything larger falls straight through to the parent
// in the same shape as the Go runtime's small-object allocator.
// Mcache itself is unsynchronized — the
// kernel heaps aggregate's "general" heap is an Mcache used only from
// run-loop context, and its "locked" heap is the same shape wrapped
// in a Locking, rather than Mcache growing its own mutex.
type Mcache struct {
	parent  Heap
	classes [len(classSizes)]class
	// owner tracks which class (by index, 1-based; 0 = none) served
	// a given address, and for class-0 large allocations the exact
	// size passed to Alloc, so Dealloc doesn't need the caller to
	// remember which path served it.
	owner map[uintptr]int
	large map[uintptr]uintptr
}

// NewMcache builds an mcache over parent.
func NewMcache(parent Heap) *Mcache {
	m := &Mcache{parent: parent, owner: map[uintptr]int{}, large: map[uintptr]uintptr{}}
	for i, sz := range classSizes {
		m.classes[i] = class{size: sz}
	}
	return m
}

func classFor(size uintptr) int {
	for i, sz := range classSizes {
		if size <= sz {
			return i
		}
	}
	return -1
}

// Alloc returns a block of at least size bytes, or Invalid if the
// owning class (or the parent, on a class miss or refill failure) is
// exhausted.
func (m *Mcache) Alloc(size uintptr) uintptr {
	idx := classFor(size)
	if idx < 0 {
		addr := m.parent.Alloc(size)
		if addr == Invalid {
			return Invalid
		}
		m.large[addr] = size
		return addr
	}

	c := &m.classes[idx]
	if len(c.free) == 0 {
		if !m.refillLocked(c) {
			return Invalid
		}
	}
	n := len(c.free) - 1
	addr := c.free[n]
	c.free = c.free[:n]
	m.owner[addr] = idx + 1
	return addr
}

// refillLocked carves slabSize bytes (or, for a class whose objects
// are bigger than slabSize, exactly one object) off the parent and
// splits it into free blocks of c.size.
func (m *Mcache) refillLocked(c *class) bool {
	n := slabSize / c.size
	if n == 0 {
		n = 1
	}
	slab := m.parent.Alloc(n * c.size)
	if slab == Invalid {
		return false
	}
	c.slabs = append(c.slabs, slab)
	for i := uintptr(0); i < n; i++ {
		c.free = append(c.free, slab+i*c.size)
	}
	return true
}

// Dealloc returns addr to the free list of whichever class served it,
// or straight back to the parent if it was a large, uncached
// allocation.
func (m *Mcache) Dealloc(addr, size uintptr) {
	if real, ok := m.large[addr]; ok {
		delete(m.large, addr)
		m.parent.Dealloc(addr, real)
		return
	}
	idx, ok := m.owner[addr]
	if !ok {
		return
	}
	delete(m.owner, addr)
	c := &m.classes[idx-1]
	c.free = append(c.free, addr)
}

// Destroy returns every slab this mcache has ever carved to the
// parent heap.
func (m *Mcache) Destroy() {
	for i := range m.classes {
		c := &m.classes[i]
		n := slabSize / c.size
		if n == 0 {
			n = 1
		}
		for _, slab := range c.slabs {
			m.parent.Dealloc(slab, n*c.size)
		}
		c.slabs = nil
		c.free = nil
	}
}

func (m *Mcache) PageSize() uintptr { return classSizes[0] }
func (m *Mcache) ThreadSafe() bool  { return false }
