package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superkit-go/services/hal/internal/halcore"
)

func TestSimPinFactoryRange(t *testing.T) {
	f := NewSimPinFactory(RaspberryPi40Pin)
	_, ok := f.ByNumber(1)
	assert.False(t, ok, "BCM 1 is not on the header")
	_, ok = f.ByNumber(28)
	assert.False(t, ok)

	a, ok := f.ByNumber(17)
	require.True(t, ok)
	b, _ := f.ByNumber(17)
	assert.Same(t, a, b, "pins are stable per number")
}

func TestSimPinIRQOnDrive(t *testing.T) {
	f := NewSimPinFactory(RaspberryPi40Pin)
	p, _ := f.Pin(18)
	require.NoError(t, p.ConfigureInput(halcore.PullUp))
	assert.True(t, p.Get(), "pulled-up input idles high")

	var fired []bool
	require.NoError(t, p.SetIRQ(halcore.EdgeFalling, func() { fired = append(fired, p.Get()) }))
	p.Drive(false) // falling
	p.Drive(false) // no change
	p.Drive(true)  // rising, not armed
	p.Drive(false) // falling
	assert.Equal(t, []bool{false, false}, fired)

	require.NoError(t, p.ClearIRQ())
	p.Drive(true)
	p.Drive(false)
	assert.Len(t, fired, 2)
}

func TestSimPinHistory(t *testing.T) {
	f := NewSimPinFactory(RaspberryPi40Pin)
	p, _ := f.Pin(17)
	require.NoError(t, p.ConfigureOutput(true))
	p.Set(false)
	p.Set(false)
	p.Toggle()
	assert.Equal(t, []bool{true, false, true}, p.Levels())

	p.ResetHistory()
	assert.Empty(t, p.History())

	for i := 0; i < historyCap+10; i++ {
		p.Toggle()
	}
	h := p.History()
	assert.Len(t, h, historyCap)
	assert.False(t, h[0].At.After(h[len(h)-1].At))

	assert.Equal(t, PinState{Pin: 17, Mode: "out", Pull: "none", Level: p.Get()}, p.State())
}

func TestSimStates(t *testing.T) {
	s := NewSim(RaspberryPi40Pin)
	p27, _ := s.Pins.Pin(27)
	p4, _ := s.Pins.Pin(4)
	require.NoError(t, p27.ConfigureInput(halcore.PullDown))
	require.NoError(t, p4.ConfigureOutput(true))

	st := s.Pins.States()
	require.Len(t, st, 2)
	assert.Equal(t, 4, st[0].Pin)
	assert.Equal(t, "in", st[1].Mode)
	assert.Equal(t, "down", st[1].Pull)
}

func TestSimI2CRecords(t *testing.T) {
	s := NewSim(RaspberryPi40Pin)
	_, ok := s.I2C.ByID("i2c0")
	assert.False(t, ok)

	bus, ok := s.I2C.ByID("i2c1")
	require.True(t, ok)
	r := []byte{0xff}
	require.NoError(t, bus.Tx(0x27, []byte{0x08}, r))
	assert.Equal(t, byte(0), r[0])

	raw, _ := s.I2C.Bus("i2c1")
	assert.Equal(t, []I2CTx{{Addr: 0x27, W: []byte{0x08}, Rn: 1}}, raw.Transactions())
}

func TestBoardModelSim(t *testing.T) {
	assert.Equal(t, SimModel, BoardModel(true))
	assert.NotEmpty(t, BoardModel(false))
}
