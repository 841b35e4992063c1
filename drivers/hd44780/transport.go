package hd44780

import (
	"time"

	"tinygo.org/x/drivers"
)

// Pin is the output side of a GPIO line.
type Pin interface {
	Set(level bool)
}

// GPIOBus wires the controller directly: RS, E and D4..D7.
type GPIOBus struct {
	RS, E Pin
	D     [4]Pin // D4..D7
	// Pulse is the E high time. Default 1µs.
	Pulse time.Duration
}

func NewGPIOBus(rs, e Pin, d4, d5, d6, d7 Pin) *GPIOBus {
	return &GPIOBus{RS: rs, E: e, D: [4]Pin{d4, d5, d6, d7}, Pulse: time.Microsecond}
}

// Configure drives all lines low.
func (g *GPIOBus) Configure() {
	g.RS.Set(false)
	g.E.Set(false)
	for _, p := range g.D {
		p.Set(false)
	}
}

func (g *GPIOBus) WriteNibble(rs bool, n byte) error {
	g.RS.Set(rs)
	for i, p := range g.D {
		p.Set(n&(1<<i) != 0)
	}
	g.E.Set(true)
	if g.Pulse > 0 {
		time.Sleep(g.Pulse)
	}
	g.E.Set(false)
	return nil
}

// PCF8574 backpack bit layout.
const (
	bpRS        = 0x01
	bpE         = 0x04
	bpBacklight = 0x08
)

// DefaultI2CAddress is the usual PCF8574 backpack address; PCF8574A boards
// use 0x3F.
const DefaultI2CAddress = 0x27

// I2CBus drives a PCF8574 backpack: P0=RS, P1=RW, P2=E, P3=backlight,
// P4..P7=D4..D7.
type I2CBus struct {
	bus       drivers.I2C
	addr      uint16
	backlight bool
}

func NewI2CBus(bus drivers.I2C, addr uint16) *I2CBus {
	if addr == 0 {
		addr = DefaultI2CAddress
	}
	return &I2CBus{bus: bus, addr: addr, backlight: true}
}

func (b *I2CBus) SetBacklight(on bool) error {
	b.backlight = on
	return b.bus.Tx(b.addr, []byte{b.ctrl(false)}, nil)
}

func (b *I2CBus) WriteNibble(rs bool, n byte) error {
	v := n<<4 | b.ctrl(rs)
	// E high then low in one transaction; the expander latches on each byte.
	return b.bus.Tx(b.addr, []byte{v | bpE, v}, nil)
}

func (b *I2CBus) ctrl(rs bool) byte {
	var v byte
	if rs {
		v |= bpRS
	}
	if b.backlight {
		v |= bpBacklight
	}
	return v
}
