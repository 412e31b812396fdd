package sched

import "util"

// Clamp bounds for the platform one-shot timer: RunloopTimerMin keeps
// the platform from being reprogrammed more often than it can usefully
// fire, RunloopTimerMax is the scheduler quantum. Expressed here in
// the same units as the timer heap's deadlines (nanoseconds).
const (
	RunloopTimerMin uint64 = 50_000     // 50us
	RunloopTimerMax uint64 = 10_000_000 // 10ms scheduler quantum
)

// PlatformTimer is the hook that arms the next one-shot wakeup.
type PlatformTimer interface {
	Arm(timeout uint64)
}

// ProgramTimer reprograms the platform one-shot timer: if the timer
// heap's next deadline hasn't changed since the last time this CPU
// armed the platform timer, it does nothing (updated=false). Otherwise
// it computes a clamped timeout from now, arms it, and returns the new
// last_timer_update value so the caller can store it back on the
// owning cpu.Info — recording next+timeout-delta rather than next
// itself so repeated reprogramming against the clamp converges instead
// of drifting.
func ProgramTimer(next uint64, now uint64, lastTimerUpdate uint64, pt PlatformTimer) (newLastTimerUpdate uint64, updated bool) {
	if next == lastTimerUpdate {
		return lastTimerUpdate, false
	}
	delta := int64(next) - int64(now)
	timeout := util.Clamp(delta, int64(RunloopTimerMin), int64(RunloopTimerMax))
	pt.Arm(uint64(timeout))
	return uint64(int64(next) + timeout - delta), true
}
