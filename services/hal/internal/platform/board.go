// Package platform supplies pins and buses: periph.io on a Raspberry Pi, or
// an in-memory simulator anywhere else.
package platform

// Board describes what the SoC header exposes (GPIO range, I²C controllers).
// It must not include wiring choices; those live in lesson configuration.
type Board struct {
	Name             string
	GPIOMin, GPIOMax int
	I2C              []string // bus ids, e.g. "i2c1"
}

// RaspberryPi40Pin is the 40-pin header of every Pi since the B+; BCM 2..27
// are routed to the header and i2c1 sits on BCM 2/3.
var RaspberryPi40Pin = Board{
	Name:    "raspberrypi-40pin",
	GPIOMin: 2,
	GPIOMax: 27,
	I2C:     []string{"i2c1"},
}

// ValidPin reports whether n is a BCM GPIO routed to the header.
func (b Board) ValidPin(n int) bool { return n >= b.GPIOMin && n <= b.GPIOMax }

// HasI2C reports whether the board exposes bus id.
func (b Board) HasI2C(id string) bool {
	for _, x := range b.I2C {
		if x == id {
			return true
		}
	}
	return false
}
