package gpio_dout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/devtest"
	"superkit-go/types"
)

func TestActiveLowLED(t *testing.T) {
	h := devtest.New(t)
	dev := h.Build(t, "gpio_led", "led", Params{Pin: 17, ActiveLow: true})
	pin := h.Pin(t, 17)

	assert.True(t, pin.Get(), "logical off is physical high")
	assert.Equal(t, types.LEDValue{On: false}, h.Pub.Last())

	devtest.Control(t, dev, "set", types.LEDSet{On: true})
	assert.False(t, pin.Get())
	assert.Equal(t, types.LEDValue{On: true}, h.Pub.Last())

	devtest.Control(t, dev, "toggle", nil)
	assert.True(t, pin.Get())
	assert.Equal(t, types.LEDValue{On: false}, h.Pub.Last())

	caps := dev.Capabilities()
	require.Len(t, caps, 1)
	assert.Equal(t, types.KindLED, caps[0].Kind)
	assert.Equal(t, "io", caps[0].Domain)
	assert.Equal(t, types.LEDInfo{Pin: 17, ActiveLow: true}, caps[0].Info.Detail)
}

func TestSwitchDefaultsAndPayloads(t *testing.T) {
	h := devtest.New(t)
	dev := h.Build(t, "gpio_switch", "fan", Params{Pin: 27, Initial: true, Name: "fan0"})
	assert.True(t, h.Pin(t, 27).Get())

	caps := dev.Capabilities()
	assert.Equal(t, "power", caps[0].Domain)
	assert.Equal(t, "fan0", caps[0].Name)

	res, err := dev.Control(devtest.Addr("fan", caps[0]), "set", types.LEDSet{On: false})
	require.NoError(t, err)
	assert.Equal(t, errcode.InvalidPayload, res.Error, "switch wants SwitchSet")

	res, _ = dev.Control(devtest.Addr("fan", caps[0]), "blink", nil)
	assert.Equal(t, errcode.Unsupported, res.Error)

	devtest.Control(t, dev, "set", &types.SwitchSet{On: false})
	assert.False(t, h.Pin(t, 27).Get())
}

func TestCloseTurnsOffAndReleases(t *testing.T) {
	h := devtest.New(t)
	dev, err := h.TryBuild("gpio_led", "led", Params{Pin: 22, ActiveLow: true, Initial: true})
	require.NoError(t, err)
	require.NoError(t, dev.Init(t.Context()))
	assert.False(t, h.Pin(t, 22).Get())

	_, err = h.TryBuild("gpio_led", "other", Params{Pin: 22})
	assert.Equal(t, errcode.PinInUse, errcode.Of(err))

	require.NoError(t, dev.Close())
	assert.True(t, h.Pin(t, 22).Get(), "off for an active-low LED")
	_, ok := h.Reg.Owner(22)
	assert.False(t, ok)
}

func TestBadParams(t *testing.T) {
	h := devtest.New(t)
	_, err := h.TryBuild("gpio_led", "led", "pin 17")
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))
	_, err = h.TryBuild("gpio_led", "led", Params{Pin: 40})
	assert.Equal(t, errcode.UnknownPin, errcode.Of(err))
}
