package core

import (
	"time"

	"superkit-go/services/hal/internal/gpioirq"
	"superkit-go/services/hal/internal/halcore"

	"tinygo.org/x/drivers"
)

type ResourceID string // e.g. "i2c1"

// ---- GPIO handles ----

type Pull = halcore.Pull

const (
	PullNone = halcore.PullNone
	PullUp   = halcore.PullUp
	PullDown = halcore.PullDown
)

type Edge = halcore.Edge

const (
	EdgeNone    = halcore.EdgeNone
	EdgeRising  = halcore.EdgeRising
	EdgeFalling = halcore.EdgeFalling
	EdgeBoth    = halcore.EdgeBoth
)

type GPIOHandle = halcore.GPIOPin

// ---- PWM handles ----

type PWMRampMode uint8

const (
	PWMRampLinear PWMRampMode = iota
)

// PWMHandle is a PWM output with a logical resolution of 0..top.
type PWMHandle interface {
	Configure(freqHz uint64, top uint16) error
	Set(level uint16) // cancels any running ramp
	Level() uint16
	// Ramp starts a non-blocking ramp and reports false if one is already
	// running. done, if set, runs with the final level when the ramp ends.
	Ramp(to uint16, durationMs uint32, steps uint16, mode PWMRampMode, done func(level uint16)) bool
	StopRamp()
}

// ---- Pin claims ----

type PinFunc uint8

const (
	FuncGPIOIn PinFunc = iota
	FuncGPIOOut
	FuncPWM
)

func (f PinFunc) String() string {
	switch f {
	case FuncGPIOIn:
		return "gpio_in"
	case FuncGPIOOut:
		return "gpio_out"
	case FuncPWM:
		return "pwm"
	default:
		return "unknown"
	}
}

// PinHandle is a claimed pin. AsGPIO and AsPWM panic if the pin was claimed
// for the other function.
type PinHandle interface {
	Pin() int
	AsGPIO() GPIOHandle
	AsPWM() PWMHandle
}

// ---- Edge streams ----

type GPIOEdgeEvent = gpioirq.GPIOEvent

type GPIOEdgeStream interface {
	Events() <-chan GPIOEdgeEvent
	Close()
}

// ---- Unified registry interface ----

type ResourceRegistry interface {
	// GPIO / PWM. Claims are exclusive: unknown_pin, pin_in_use.
	ClaimPin(devID string, n int, fn PinFunc) (PinHandle, error)
	ReleasePin(devID string, n int)

	// SubscribeGPIOEdges requires the pin to be claimed by devID as input.
	SubscribeGPIOEdges(devID string, n int, edge Edge, debounce time.Duration, invert bool, bufLen int) (GPIOEdgeStream, error)

	// Transactional buses. unknown_bus, bus_in_use.
	ClaimI2C(devID string, id ResourceID) (drivers.I2C, error)
	ReleaseI2C(devID string, id ResourceID)
}

// ---- Device → HAL telemetry (single shape) ----
// By default an Event is a value update published retained to .../value.
// IsEvent publishes to .../event[/EventTag] instead (non-retained). Err, when
// non-empty, publishes only .../status=degraded (retained).

type Event struct {
	Addr     CapAddr
	Payload  any
	TSms     int64
	Err      string
	IsEvent  bool
	EventTag string
}

type EventEmitter interface {
	// Emit must be non-blocking; false indicates a drop under pressure.
	Emit(ev Event) bool
}

// ---- HAL-injected resources ----

type Resources struct {
	Reg ResourceRegistry
	Pub EventEmitter // set by the HAL
}
