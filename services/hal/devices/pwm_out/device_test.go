package pwm_out

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/devtest"
	"superkit-go/types"
)

func TestSetClampsAndPublishesLogical(t *testing.T) {
	h := devtest.New(t)
	dev := h.Build(t, "pwm_out", "led", Params{Pin: 18, FreqHz: 1000, Top: 100})
	assert.Equal(t, types.PWMValue{Level: 0}, h.Pub.Last())

	devtest.Control(t, dev, "set", types.PWMSet{Level: 250})
	assert.Equal(t, types.PWMValue{Level: 100}, h.Pub.Last())
	assert.Eventually(t, h.Pin(t, 18).Get, time.Second, time.Millisecond, "full duty is steady high")
}

func TestActiveLowInverts(t *testing.T) {
	h := devtest.New(t)
	h.Build(t, "pwm_out", "led", Params{Pin: 18, Top: 100, ActiveLow: true})
	assert.Equal(t, types.PWMValue{Level: 0}, h.Pub.Last())
	assert.Eventually(t, h.Pin(t, 18).Get, time.Second, time.Millisecond, "logical 0 is physical top")
}

func TestRampPublishesFinalValue(t *testing.T) {
	h := devtest.New(t)
	dev := h.Build(t, "pwm_out", "led", Params{Pin: 18, FreqHz: 1000, Top: 100})

	devtest.Control(t, dev, "ramp", types.PWMRamp{To: 100, DurationMs: 40, Steps: 4})
	caps := dev.Capabilities()
	res, err := dev.Control(devtest.Addr("led", caps[0]), "ramp", types.PWMRamp{To: 0, DurationMs: 40, Steps: 4})
	require.NoError(t, err)
	assert.Equal(t, errcode.Busy, res.Error)

	h.Pub.Wait(t, devtest.Value(types.PWMValue{Level: 100}))

	devtest.Control(t, dev, "ramp", types.PWMRamp{To: 0, DurationMs: 1000, Steps: 10})
	devtest.Control(t, dev, "stop_ramp", nil)
	h.Pub.Reset()
	devtest.Control(t, dev, "ramp", types.PWMRamp{To: 0, DurationMs: 10, Steps: 2})
	h.Pub.Wait(t, devtest.Value(types.PWMValue{Level: 0}))
}

func TestPWMParams(t *testing.T) {
	h := devtest.New(t)
	_, err := h.TryBuild("pwm_out", "x", Params{Pin: 18})
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))

	dev := h.Build(t, "pwm_out", "y", Params{Pin: 13, Top: 255, Initial: 128})
	assert.Equal(t, types.PWMValue{Level: 128}, h.Pub.Last())
	info := dev.Capabilities()[0].Info.Detail.(types.PWMInfo)
	assert.Equal(t, uint64(1000), info.FreqHz, "default frequency")

	res, _ := dev.Control(devtest.Addr("y", dev.Capabilities()[0]), "set", types.LEDSet{On: true})
	assert.Equal(t, errcode.InvalidPayload, res.Error)
}
