// Package cpufeat detects hardware RNG support and implements the
// RDSEED → RDRAND → clock fallback chain used for seeding the
// kernel's entropy pool.
package cpufeat

import "golang.org/x/sys/cpu"

// Features reports which hardware RNG instructions this processor
// supports: RDSEED (CPUID leaf 7 subleaf 0, EBX bit 18) and RDRAND
// (CPUID leaf 1, ECX bit 30).
type Features struct {
	HasRDSEED bool
	HasRDRAND bool
}

// Detect reads the two feature bits via golang.org/x/sys/cpu's CPUID
// cache, which already performs exactly those leaf/bit checks — the
// reason this core depends on x/sys/cpu rather than issuing CPUID
// itself (see DESIGN.md).
func Detect() Features {
	return Features{HasRDSEED: cpu.X86.HasRDSEED, HasRDRAND: cpu.X86.HasRDRAND}
}

// instructionSource is the architecture hook that actually executes
// RDSEED/RDRAND and reports whether the instruction produced a value
// (both can legitimately fail under contention — the CF flag is
// clear). On amd64 this is backed by real assembly (rdrand_amd64.s);
// elsewhere it always reports false so Seed falls through to the
// clock immediately.
type instructionSource interface {
	rdseed() (uint64, bool)
	rdrand() (uint64, bool)
}

// Clock is the fallback entropy source: a monotonic-raw reading, used
// only after both hardware generators fail every attempt.
type Clock func() uint64

// Seeder runs the RDSEED → RDRAND → clock fallback chain. It is
// constructed with the detected Features so it skips instructions the
// processor doesn't actually support, and with an instructionSource so
// tests can substitute a fake generator instead of depending on real
// hardware.
type Seeder struct {
	features Features
	src      instructionSource
	clock    Clock
	tries    int
}

// defaultTries bounds how many times each of RDSEED and RDRAND is
// retried before falling back to the clock.
const defaultTries = 128

// NewSeeder builds a Seeder using the live CPU and the given clock
// fallback.
func NewSeeder(clock Clock) *Seeder {
	return &Seeder{features: Detect(), src: hwSource{}, clock: clock, tries: defaultTries}
}

// newSeederWithSource is the test-only constructor that injects a
// fake instruction source instead of real hardware.
func newSeederWithSource(features Features, src instructionSource, clock Clock) *Seeder {
	return &Seeder{features: features, src: src, clock: clock, tries: defaultTries}
}

// Seed returns a 64-bit seed, trying RDSEED up to defaultTries times,
// then RDRAND up to defaultTries times, then falling back to the
// clock. It never returns an error, only a value.
func (s *Seeder) Seed() uint64 {
	if s.features.HasRDSEED {
		for i := 0; i < s.tries; i++ {
			if v, ok := s.src.rdseed(); ok {
				return v
			}
		}
	}
	if s.features.HasRDRAND {
		for i := 0; i < s.tries; i++ {
			if v, ok := s.src.rdrand(); ok {
				return v
			}
		}
	}
	return s.clock()
}
