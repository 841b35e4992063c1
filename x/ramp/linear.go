// Package ramp drives integer level ramps for PWM outputs.
package ramp

import (
	"time"

	"superkit-go/x/mathx"
)

// Step sets the new logical level in [0..top].
type Step func(level uint16)

// Tick waits for d and reports whether to continue (false => cancelled).
type Tick func(d time.Duration) bool

// ChanTick returns a Tick that sleeps on a timer and gives up when stop closes.
func ChanTick(stop <-chan struct{}) Tick {
	return func(d time.Duration) bool {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-stop:
			return false
		case <-t.C:
			return true
		}
	}
}

// StartLinear runs a synchronous (caller-driven) integer ramp from cur to to.
// Call it from a goroutine and provide Tick to handle timing and cancellation.
// steps==0 or durationMs==0 snaps to 'to'. The final level is always set
// unless the ramp is cancelled.
func StartLinear(cur, to, top uint16, durationMs uint32, steps uint16, tick Tick, set Step) {
	to = min(to, top)
	if steps == 0 || durationMs == 0 {
		set(to)
		return
	}
	delta := int32(to) - int32(cur)
	st := int32(steps)
	stepDur := time.Duration(max(durationMs/uint32(steps), 1)) * time.Millisecond

	acc := int32(0)
	level := int32(cur)
	for i := uint16(1); i < steps; i++ {
		if !tick(stepDur) {
			return
		}
		acc += delta
		inc := acc / st
		if inc != 0 {
			acc -= inc * st
			level = mathx.Clamp(level+inc, 0, int32(top))
			set(uint16(level))
		}
	}
	if !tick(stepDur) {
		return
	}
	set(to)
}
