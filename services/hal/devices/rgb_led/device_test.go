package rgb_led

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/services/hal/internal/devtest"
	"superkit-go/types"
)

func TestSetColourDrivesChannels(t *testing.T) {
	h := devtest.New(t)
	dev := h.Build(t, "rgb_led", "rgb", Params{Pins: [3]int{17, 18, 27}})
	assert.Equal(t, types.RGBValue{Color: 0}, h.Pub.Last())

	devtest.Control(t, dev, "set", types.RGBSet{Color: 0xFF0000})
	assert.Equal(t, types.RGBValue{Color: 0xFF0000}, h.Pub.Last())

	red, green := h.Pin(t, 17), h.Pin(t, 18)
	assert.Eventually(t, red.Get, time.Second, time.Millisecond, "full red is steady high")
	assert.False(t, green.Get())

	res, _ := dev.Control(devtest.Addr("rgb", dev.Capabilities()[0]), "set", types.RGBSet{Color: 0x1000000})
	assert.Equal(t, errcode.InvalidPayload, res.Error)
}

func TestChannelScaling(t *testing.T) {
	h := devtest.New(t)
	d := h.Build(t, "rgb_led", "rgb", Params{Pins: [3]int{17, 18, 27}, Top: 100, ActiveLow: true}).(*Device)

	d.apply(0x7F3F00)
	assert.Equal(t, uint16(100-50), d.ch[0].Level())
	assert.Equal(t, uint16(100-25), d.ch[1].Level())
	assert.Equal(t, uint16(100), d.ch[2].Level())
}

func TestClaimFailureReleasesEarlierPins(t *testing.T) {
	h := devtest.New(t)
	_, err := h.Reg.ClaimPin("someone", 27, core.FuncGPIOOut)
	require.NoError(t, err)

	_, err = h.TryBuild("rgb_led", "rgb", Params{Pins: [3]int{17, 18, 27}})
	assert.Equal(t, errcode.PinInUse, errcode.Of(err))
	_, held := h.Reg.Owner(17)
	assert.False(t, held)
	_, held = h.Reg.Owner(18)
	assert.False(t, held)
}
