//go:build amd64

package cpufeat

// hwSource executes the real RDSEED/RDRAND instructions, implemented
// in rdrand_amd64.s. Both report ok=false when the instruction's carry
// flag is clear (the generator had nothing ready yet), which is a
// normal, expected outcome under contention — not an error.
type hwSource struct{}

func (hwSource) rdseed() (uint64, bool) { return rdseedAsm() }
func (hwSource) rdrand() (uint64, bool) { return rdrandAsm() }

// rdseedAsm and rdrandAsm are implemented in rdrand_amd64.s: each
// issues the instruction once and returns (value, CF).
func rdseedAsm() (uint64, bool)
func rdrandAsm() (uint64, bool)
