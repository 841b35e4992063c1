// Package halcore holds the pin and bus abstractions shared by the platform
// factories, the resource provider and the edge worker.
package halcore

import (
	"slices"

	"tinygo.org/x/drivers"
)

// Pull is the bias applied to an input pin.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

var pullNames = [...]string{PullNone: "none", PullUp: "up", PullDown: "down"}

func (p Pull) String() string {
	if int(p) < len(pullNames) {
		return pullNames[p]
	}
	return pullNames[PullNone]
}

// ParsePull reads "up" or "down"; anything else is PullNone.
func ParsePull(s string) Pull {
	if i := slices.Index(pullNames[:], s); i > 0 {
		return Pull(i)
	}
	return PullNone
}

// Edge selects which level changes raise an interrupt.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

var edgeNames = [...]string{EdgeNone: "none", EdgeRising: "rising", EdgeFalling: "falling", EdgeBoth: "both"}

func (e Edge) String() string {
	if int(e) < len(edgeNames) {
		return edgeNames[e]
	}
	return edgeNames[EdgeNone]
}

// ParseEdge reads "rising", "falling" or "both"; anything else is EdgeNone.
func ParseEdge(s string) Edge {
	if i := slices.Index(edgeNames[:], s); i > 0 {
		return Edge(i)
	}
	return EdgeNone
}

// GPIOPin is one BCM-numbered pin.
type GPIOPin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Toggle()
	Number() int
}

// IRQPin is a GPIOPin that can call back on edges. The handler runs on a
// platform goroutine and must not block.
type IRQPin interface {
	GPIOPin
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// PinFactory hands out pins by BCM number.
type PinFactory interface {
	ByNumber(n int) (GPIOPin, bool)
}

// I2CFactory hands out I2C buses by id, "i2c1" on a Raspberry Pi. Buses
// satisfy drivers.I2C so the tinygo device drivers work unchanged.
type I2CFactory interface {
	ByID(id string) (drivers.I2C, bool)
}
