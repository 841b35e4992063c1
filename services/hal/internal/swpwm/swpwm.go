// Package swpwm drives PWM in software by toggling a GPIO from a goroutine.
// The Raspberry Pi lessons use it for LED brightness and RGB mixing, where
// a few hundred microseconds of jitter is invisible.
package swpwm

import (
	"sync"
	"time"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/halcore"
	"superkit-go/services/metrics"
	"superkit-go/x/ramp"
	"superkit-go/x/timex"
)

// RampMode selects the ramp shape. Only linear exists today.
type RampMode uint8

const RampLinear RampMode = 0

type PWM struct {
	pin halcore.GPIOPin

	mu     sync.Mutex
	period time.Duration
	top    uint16
	level  uint16

	wake chan struct{}
	quit chan struct{}
	done chan struct{}

	rampCancel chan struct{}
	rampAlive  bool
}

func New(pin halcore.GPIOPin) *PWM {
	return &PWM{pin: pin, wake: make(chan struct{}, 1)}
}

// Configure sets frequency and logical resolution, drives the pin low and
// starts the output goroutine on first use.
func (p *PWM) Configure(freqHz uint64, top uint16) error {
	if freqHz == 0 {
		return &errcode.E{C: errcode.InvalidParams, Op: "swpwm.configure", Msg: "freq_hz must be > 0"}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.period = timex.PeriodFromHz(freqHz)
	p.top = max(top, 1)
	p.level = min(p.level, p.top)
	if p.quit == nil {
		if err := p.pin.ConfigureOutput(false); err != nil {
			return errcode.Wrap(errcode.IOError, "swpwm.configure", err)
		}
		p.quit = make(chan struct{})
		p.done = make(chan struct{})
		go p.loop(p.quit, p.done)
	}
	p.notify()
	return nil
}

func (p *PWM) Level() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *PWM) Top() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.top
}

// Set cancels any running ramp and applies level, clamped to top.
func (p *PWM) Set(level uint16) {
	p.mu.Lock()
	p.cancelRampLocked()
	p.setLocked(level)
	p.mu.Unlock()
}

// caller holds lock
func (p *PWM) setLocked(level uint16) {
	p.level = min(level, p.top)
	p.notify()
}

func (p *PWM) notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// caller holds lock
func (p *PWM) cancelRampLocked() {
	if p.rampAlive {
		close(p.rampCancel)
		p.rampAlive = false
		metrics.PWMRamp("cancelled")
	}
}

func (p *PWM) StopRamp() {
	p.mu.Lock()
	p.cancelRampLocked()
	p.mu.Unlock()
}

// Ramp moves linearly to 'to' over durationMs in the given number of steps.
// It reports false if a ramp is already running or the PWM is unconfigured.
// done, if set, runs with the final level once the ramp completes.
func (p *PWM) Ramp(to uint16, durationMs uint32, steps uint16, _ RampMode, done func(level uint16)) bool {
	p.mu.Lock()
	if p.rampAlive || p.quit == nil {
		p.mu.Unlock()
		metrics.PWMRamp("busy")
		return false
	}
	if steps == 0 || durationMs == 0 {
		p.setLocked(to)
		lvl := p.level
		p.mu.Unlock()
		metrics.PWMRamp("completed")
		if done != nil {
			done(lvl)
		}
		return true
	}
	cancel := make(chan struct{})
	p.rampCancel, p.rampAlive = cancel, true
	start, top := p.level, p.top
	p.mu.Unlock()

	go func() {
		ramp.StartLinear(start, to, top, durationMs, steps, ramp.ChanTick(cancel), func(lvl uint16) {
			p.mu.Lock()
			select {
			case <-cancel:
			default:
				p.setLocked(lvl)
			}
			p.mu.Unlock()
		})
		p.mu.Lock()
		finished := false
		select {
		case <-cancel:
		default:
			// Still ours: mark idle.
			p.rampAlive = false
			finished = true
		}
		lvl := p.level
		p.mu.Unlock()
		if finished {
			metrics.PWMRamp("completed")
			if done != nil {
				done(lvl)
			}
		}
	}()
	return true
}

// Close stops ramps and the output goroutine, leaving the pin low.
func (p *PWM) Close() {
	p.mu.Lock()
	p.cancelRampLocked()
	quit, done := p.quit, p.done
	p.quit = nil
	p.mu.Unlock()
	if quit != nil {
		close(quit)
		<-done
	}
	p.pin.Set(false)
}

func (p *PWM) loop(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTimer(time.Hour)
	defer t.Stop()
	sleep := func(d time.Duration) bool {
		t.Reset(d)
		select {
		case <-quit:
			return false
		case <-t.C:
			return true
		}
	}
	for {
		p.mu.Lock()
		lvl, top, period := p.level, p.top, p.period
		p.mu.Unlock()

		switch {
		case lvl == 0 || lvl >= top:
			// Steady state: no toggling until the level changes.
			p.pin.Set(lvl != 0)
			select {
			case <-quit:
				return
			case <-p.wake:
			}
		default:
			on := period * time.Duration(lvl) / time.Duration(top)
			p.pin.Set(true)
			if !sleep(on) {
				return
			}
			p.pin.Set(false)
			if !sleep(period - on) {
				return
			}
		}
	}
}
