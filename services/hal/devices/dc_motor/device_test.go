package dc_motor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/devtest"
	"superkit-go/types"
)

func TestDirections(t *testing.T) {
	h := devtest.New(t)
	dev := h.Build(t, "dc_motor", "motor", Params{PinA: 17, PinB: 18, PinEnable: 27})
	a, b, en := h.Pin(t, 17), h.Pin(t, 18), h.Pin(t, 27)
	assert.Equal(t, types.MotorValue{Direction: types.MotorStop}, h.Pub.Last())
	assert.False(t, en.Get())

	devtest.Control(t, dev, "set", types.MotorSet{Direction: types.MotorClockwise})
	assert.True(t, a.Get())
	assert.False(t, b.Get())
	assert.True(t, en.Get())
	assert.Equal(t, types.MotorValue{Direction: types.MotorClockwise}, h.Pub.Last())

	en.ResetHistory()
	devtest.Control(t, dev, "set", types.MotorSet{Direction: types.MotorCounterClockwise})
	assert.False(t, a.Get())
	assert.True(t, b.Get())
	assert.Equal(t, []bool{false, true}, en.Levels(), "enable drops before the direction changes")

	devtest.Control(t, dev, "set", types.MotorSet{Direction: types.MotorStop})
	assert.False(t, en.Get())
	assert.Equal(t, types.MotorValue{Direction: types.MotorStop}, h.Pub.Last())
}

func TestRejectsUnknownDirection(t *testing.T) {
	h := devtest.New(t)
	dev := h.Build(t, "dc_motor", "motor", Params{PinA: 17, PinB: 18, PinEnable: 27})
	res, err := dev.Control(devtest.Addr("motor", dev.Capabilities()[0]), "set", types.MotorSet{Direction: "sideways"})
	require.NoError(t, err)
	assert.Equal(t, errcode.InvalidPayload, res.Error)
}

func TestCloseStopsAndReleases(t *testing.T) {
	h := devtest.New(t)
	dev, err := h.TryBuild("dc_motor", "motor", Params{PinA: 17, PinB: 18, PinEnable: 27})
	require.NoError(t, err)
	require.NoError(t, dev.Init(t.Context()))
	devtest.Control(t, dev, "set", types.MotorSet{Direction: types.MotorClockwise})

	require.NoError(t, dev.Close())
	assert.False(t, h.Pin(t, 27).Get())
	for _, n := range []int{17, 18, 27} {
		_, held := h.Reg.Owner(n)
		assert.False(t, held, "gpio%d", n)
	}
}

func TestPartialClaimRollsBack(t *testing.T) {
	h := devtest.New(t)
	_, err := h.TryBuild("dc_motor", "m1", Params{PinA: 17, PinB: 18, PinEnable: 27})
	require.NoError(t, err)

	_, err = h.TryBuild("dc_motor", "m2", Params{PinA: 22, PinB: 18, PinEnable: 23})
	assert.Equal(t, errcode.PinInUse, errcode.Of(err))
	for _, n := range []int{22, 23} {
		_, held := h.Reg.Owner(n)
		assert.False(t, held, "gpio%d", n)
	}
}
