//go:build !linux

package platform

import (
	"errors"

	"tinygo.org/x/drivers"

	"superkit-go/services/hal/internal/halcore"
)

// ErrNoHardware is returned by OpenHost off Linux; use the simulator.
var ErrNoHardware = errors.New("platform: GPIO hardware requires linux")

type Host struct {
	Board Board
	Pins  *HostPinFactory
	I2C   *HostI2CFactory
}

type HostPinFactory struct{}

func (*HostPinFactory) ByNumber(int) (halcore.GPIOPin, bool) { return nil, false }

type HostI2CFactory struct{}

func (*HostI2CFactory) ByID(string) (drivers.I2C, bool) { return nil, false }

func OpenHost(Board) (*Host, error) { return nil, ErrNoHardware }

func (*Host) Close() error { return nil }

func hostModel() string { return "" }
