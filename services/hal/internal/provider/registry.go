// Package provider implements core.ResourceRegistry over a pin factory and an
// I²C factory: exclusive pin claims, software PWM, debounced edge streams and
// one serialising worker per I²C bus.
package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/services/hal/internal/gpioirq"
	"superkit-go/services/hal/internal/halcore"
	"superkit-go/services/hal/internal/swpwm"
)

// Ensure the provider satisfies the contracts at compile time.
var _ core.ResourceRegistry = (*Registry)(nil)

// Options tune queue sizes and timeouts; zero values take defaults.
type Options struct {
	ISRQueueLen int           // edge worker ISR queue, default 64
	I2CTimeout  time.Duration // per transaction, default 250ms
}

type Registry struct {
	pins halcore.PinFactory
	i2c  halcore.I2CFactory
	irq  *gpioirq.Worker
	opt  Options

	mu        sync.Mutex
	pinOwners map[int]pinOwner
	pwms      map[int]*swpwm.PWM
	streams   map[int]*gpioirq.Stream
	i2cOwners map[core.ResourceID]*i2cOwner
	i2cClaims map[core.ResourceID]map[string]struct{}
}

type pinOwner struct {
	devID string
	fn    core.PinFunc
	pin   halcore.GPIOPin
}

func New(pins halcore.PinFactory, i2c halcore.I2CFactory, opt Options) *Registry {
	if opt.ISRQueueLen <= 0 {
		opt.ISRQueueLen = 64
	}
	if opt.I2CTimeout <= 0 {
		opt.I2CTimeout = 250 * time.Millisecond
	}
	return &Registry{
		pins:      pins,
		i2c:       i2c,
		irq:       gpioirq.New(opt.ISRQueueLen),
		opt:       opt,
		pinOwners: make(map[int]pinOwner),
		pwms:      make(map[int]*swpwm.PWM),
		streams:   make(map[int]*gpioirq.Stream),
		i2cOwners: make(map[core.ResourceID]*i2cOwner),
		i2cClaims: make(map[core.ResourceID]map[string]struct{}),
	}
}

// Start runs the edge worker until ctx ends.
func (r *Registry) Start(ctx context.Context) { r.irq.Start(ctx) }

// ISRDrops reports interrupts lost because the edge worker lagged.
func (r *Registry) ISRDrops() uint32 { return r.irq.ISRDrops() }

// -----------------------------------------------------------------------------
// Pin claims
// -----------------------------------------------------------------------------

type pinHandle struct {
	n    int
	fn   core.PinFunc
	gpio halcore.GPIOPin
	pwm  *pwmHandle
}

func (h *pinHandle) Pin() int { return h.n }

func (h *pinHandle) AsGPIO() core.GPIOHandle {
	if h.fn != core.FuncGPIOIn && h.fn != core.FuncGPIOOut {
		panic("pin not claimed for GPIO")
	}
	return h.gpio
}

func (h *pinHandle) AsPWM() core.PWMHandle {
	if h.fn != core.FuncPWM {
		panic("pin not claimed for PWM")
	}
	return h.pwm
}

// pwmHandle adapts swpwm.PWM to core.PWMHandle.
type pwmHandle struct{ *swpwm.PWM }

func (p *pwmHandle) Ramp(to uint16, durationMs uint32, steps uint16, mode core.PWMRampMode, done func(uint16)) bool {
	return p.PWM.Ramp(to, durationMs, steps, swpwm.RampMode(mode), done)
}

func (r *Registry) ClaimPin(devID string, n int, fn core.PinFunc) (core.PinHandle, error) {
	pin, ok := r.pins.ByNumber(n)
	if !ok {
		return nil, &errcode.E{C: errcode.UnknownPin, Op: "claim", Msg: fmt.Sprintf("gpio%d", n)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, inUse := r.pinOwners[n]; inUse {
		return nil, &errcode.E{C: errcode.PinInUse, Op: "claim", Msg: fmt.Sprintf("gpio%d held by %s", n, owner.devID)}
	}

	ph := &pinHandle{n: n, fn: fn, gpio: pin}
	switch fn {
	case core.FuncGPIOIn, core.FuncGPIOOut:
	case core.FuncPWM:
		p := swpwm.New(pin)
		r.pwms[n] = p
		ph.pwm = &pwmHandle{p}
	default:
		return nil, &errcode.E{C: errcode.Unsupported, Op: "claim", Msg: fn.String()}
	}
	r.pinOwners[n] = pinOwner{devID: devID, fn: fn, pin: pin}
	return ph, nil
}

// ReleasePin stops PWM and edge streams on the pin and returns it to a
// floating input. Releasing a pin owned by someone else is a no-op.
func (r *Registry) ReleasePin(devID string, n int) {
	r.mu.Lock()
	owner, ok := r.pinOwners[n]
	if !ok || owner.devID != devID {
		r.mu.Unlock()
		return
	}
	pwm := r.pwms[n]
	st := r.streams[n]
	delete(r.pwms, n)
	delete(r.streams, n)
	delete(r.pinOwners, n)
	r.mu.Unlock()

	if pwm != nil {
		pwm.Close()
	}
	if st != nil {
		st.Close()
	}
	_ = owner.pin.ConfigureInput(halcore.PullNone)
}

// Owner reports which device holds pin n.
func (r *Registry) Owner(n int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.pinOwners[n]
	return o.devID, ok
}

func (r *Registry) SubscribeGPIOEdges(devID string, n int, edge core.Edge, debounce time.Duration, invert bool, bufLen int) (core.GPIOEdgeStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.pinOwners[n]
	if !ok || owner.devID != devID || owner.fn != core.FuncGPIOIn {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "edges", Msg: fmt.Sprintf("gpio%d not claimed as input by %s", n, devID)}
	}
	if r.streams[n] != nil {
		return nil, &errcode.E{C: errcode.Busy, Op: "edges", Msg: fmt.Sprintf("gpio%d already streaming", n)}
	}
	irqPin, ok := owner.pin.(halcore.IRQPin)
	if !ok {
		return nil, &errcode.E{C: errcode.Unsupported, Op: "edges", Msg: fmt.Sprintf("gpio%d has no interrupts", n)}
	}
	st, err := r.irq.RegisterInput(devID, irqPin, edge, debounce, invert, bufLen)
	if err != nil {
		return nil, errcode.Wrap(errcode.IOError, "edges", err)
	}
	r.streams[n] = st
	return st, nil
}

// Close stops background workers. Pins are expected to be released by
// their devices first.
func (r *Registry) Close() {
	r.mu.Lock()
	owners := r.i2cOwners
	r.i2cOwners = make(map[core.ResourceID]*i2cOwner)
	pwms := r.pwms
	r.pwms = make(map[int]*swpwm.PWM)
	r.mu.Unlock()
	for _, o := range owners {
		o.stop()
	}
	for _, p := range pwms {
		p.Close()
	}
}
