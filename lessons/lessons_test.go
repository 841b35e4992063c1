package lessons

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superkit-go/bus"
	"superkit-go/errcode"
	"superkit-go/lessons/kit"
	"superkit-go/services/hal"
)

type syncBuf struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuf) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuf) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

type rig struct {
	sim *hal.Simulator
	kit *kit.Client
	out *syncBuf
}

// newRig runs a simulated HAL on a private bus until the test ends.
func newRig(t *testing.T) *rig {
	t.Helper()
	b := bus.NewBus(64)
	svc, err := hal.New(b.NewConnection("hal"), hal.Options{Sim: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); svc.Run(ctx) }()
	t.Cleanup(func() { cancel(); <-done })
	return &rig{sim: svc.Simulator(), kit: kit.New(b.NewConnection("lesson"), 0), out: &syncBuf{}}
}

// with overrides lesson params of type T.
func with[T any](fn func(*T)) func(string, any) error {
	return func(_ string, into any) error {
		fn(into.(*T))
		return nil
	}
}

// start runs lesson name in the background; stop cancels it and returns
// the result.
func (r *rig) start(t *testing.T, name string, params func(string, any) error) (stop func() Result) {
	t.Helper()
	e, ok := Lookup(name)
	require.True(t, ok, name)
	ctx, cancel := context.WithCancel(context.Background())
	res := make(chan Result, 1)
	go func() {
		res <- Run(ctx, e, RunOptions{Kit: r.kit, Out: r.out, Log: zerolog.Nop(), Model: "simulator", Params: params, Seed: 7})
	}()
	return func() Result {
		cancel()
		select {
		case out := <-res:
			return out
		case <-time.After(5 * time.Second):
			t.Fatal("lesson did not stop")
			return Result{}
		}
	}
}

func (r *rig) waitSay(t *testing.T, s string) {
	t.Helper()
	require.Eventually(t, func() bool { return strings.Contains(r.out.String(), s) }, 3*time.Second, 2*time.Millisecond, "waiting for %q in:\n%s", s, r.out.String())
}

func (r *rig) waitLevel(t *testing.T, pin int, want bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		l, err := r.sim.Level(pin)
		return err == nil && l == want
	}, 3*time.Second, time.Millisecond, "gpio%d", pin)
}

func TestCatalog(t *testing.T) {
	var names []string
	for _, e := range All() {
		names = append(names, e.Name)
		assert.NotEmpty(t, e.Title)
		l := e.New()
		assert.NotNil(t, l.Params())
		assert.NotEmpty(t, l.Devices(), e.Name)
	}
	assert.Equal(t, []string{
		"01_LED", "02_BtnAndLed", "03_8Led", "04_PwmLed", "05_RGB", "07_Motor",
		"08_RotaryEncoder", "09_timer555", "10_74HC595_LED", "11_Dice", "11_Segment",
		"12_DotMatrix", "13_LCD1602",
	}, names)
	assert.Panics(t, func() { Register(Entry{Name: "01_LED"}) })
}

func TestBlinkingLED(t *testing.T) {
	r := newRig(t)
	stop := r.start(t, "01_LED", with(func(p *BlinkParams) { p.DelayMs = 5 }))
	r.waitSay(t, "led off ...")
	r.waitLevel(t, 17, false)
	r.waitLevel(t, 17, true)
	res := stop()

	assert.Equal(t, OutcomeInterrupted, res.Outcome)
	assert.NoError(t, res.Err)
	out := r.out.String()
	assert.True(t, strings.HasPrefix(out, "01_LED started on a simulator\n... led on\n"), out)
	assert.True(t, strings.HasSuffix(out, "\n01_LED stopped\n"), out)
	lvl, _ := r.sim.Level(17)
	assert.True(t, lvl, "LED left off (active low)")
}

func TestButtonDrivesLED(t *testing.T) {
	r := newRig(t)
	stop := r.start(t, "02_BtnAndLed", nil)
	defer stop()
	r.waitSay(t, "led off ...")

	require.NoError(t, r.sim.Drive(18, false))
	r.waitSay(t, "... led on")
	r.waitLevel(t, 17, false)

	require.NoError(t, r.sim.Drive(18, true))
	r.waitLevel(t, 17, true)
}

// A tap shorter than the debounce window still turns the LED back off.
func TestShortTapReleasesLED(t *testing.T) {
	r := newRig(t)
	stop := r.start(t, "02_BtnAndLed", nil)
	defer stop()
	r.waitSay(t, "led off ...")

	require.NoError(t, r.sim.Drive(18, false))
	r.waitLevel(t, 17, false)
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, r.sim.Drive(18, true))
	r.waitLevel(t, 17, true)
}

func TestFlowingLEDs(t *testing.T) {
	r := newRig(t)
	stop := r.start(t, "03_8Led", with(func(p *FlowParams) { p.DelayMs = 1 }))
	r.waitSay(t, "... reverse")
	stop()
	for _, pin := range []int{17, 18, 27, 22, 23, 24, 25, 4} {
		assert.Contains(t, r.sim.Levels(pin), false, "gpio%d lit at least once", pin)
	}
}

func TestMissingDeviceFailsRun(t *testing.T) {
	r := newRig(t)
	// Both LEDs on one pin: the second is never built.
	stop := r.start(t, "03_8Led", with(func(p *FlowParams) { p.Pins = []int{17, 17}; p.DelayMs = 1 }))
	r.waitSay(t, "03_8Led stopped")
	res := stop()
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, errcode.UnknownCapability)
}

func TestBreathingLED(t *testing.T) {
	r := newRig(t)
	stop := r.start(t, "04_PwmLed", with(func(p *BreatheParams) { p.DelayMs, p.HoldMs, p.Step = 1, 1, 25 }))
	r.waitSay(t, "... dimmer")
	r.waitSay(t, "brighter ...\n... dimmer\nbrighter")
	assert.Equal(t, OutcomeInterrupted, stop().Outcome)
}

func TestRGBColours(t *testing.T) {
	r := newRig(t)
	stop := r.start(t, "05_RGB", with(func(p *RGBParams) { p.DelayMs = 1 }))
	r.waitSay(t, "color = 0x000000\ncolor = 0x3F0000\ncolor = 0x7F0000")
	r.waitSay(t, "color = 0xFFFFFF")
	stop()
}

func TestMotorPhases(t *testing.T) {
	r := newRig(t)
	stop := r.start(t, "07_Motor", with(func(p *MotorParams) { p.PhaseMs = 5 }))
	r.waitSay(t, "motor clockwise ...\nstopped\nmotor counter-clockwise ...\nstopped")
	stop()
	lvl, _ := r.sim.Level(27)
	assert.False(t, lvl, "enable low after cleanup")
}

func TestRotaryEncoder(t *testing.T) {
	r := newRig(t)
	stop := r.start(t, "08_RotaryEncoder", with(func(p *EncoderParams) { p.PollMs = 1 }))
	defer stop()
	r.waitSay(t, "counter = 0")

	require.NoError(t, r.sim.Drive(18, true)) // CLK rises, DT low
	r.waitSay(t, "counter = 1")
	require.NoError(t, r.sim.Drive(27, false)) // press
	r.waitSay(t, "counter = 1\ncounter = 0")
}

func TestTimer555(t *testing.T) {
	r := newRig(t)
	stop := r.start(t, "09_timer555", with(func(p *Timer555Params) { p.DelayMs = 5 }))
	defer stop()
	r.waitSay(t, "counter = 0")
	for i := 0; i < 3; i++ {
		require.NoError(t, r.sim.Drive(17, false))
		require.NoError(t, r.sim.Drive(17, true))
	}
	r.waitSay(t, "counter = 3")
}

func TestShiftRegisterLessons(t *testing.T) {
	for _, tc := range []struct {
		name string
		want string
	}{
		{"10_74HC595_LED", "mode = 0\nforward ...\n... reverse\nmode = 1"},
		{"11_Segment", "code = 003F\ncode = 0006"},
		{"12_DotMatrix", "forward ...\n... reverse\nforward"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig(t)
			stop := r.start(t, tc.name, with(func(p *ShiftParams) { p.DelayMs = 1 }))
			r.waitSay(t, tc.want)
			res := stop()
			assert.Equal(t, OutcomeInterrupted, res.Outcome)
			assert.NoError(t, res.Err)
		})
	}
}

func TestDiceRollsOnPress(t *testing.T) {
	r := newRig(t)
	stop := r.start(t, "11_Dice", with(func(p *DiceParams) { p.DelayMs, p.HoldMs = 1, 20 }))
	defer stop()
	r.waitSay(t, "Press button to roll ...")
	assert.NotContains(t, r.out.String(), "number =")

	require.NoError(t, r.sim.Drive(22, false))
	r.waitSay(t, "number = ")
}

func TestLCDFinishesByItself(t *testing.T) {
	r := newRig(t)
	stop := r.start(t, "13_LCD1602", with(func(p *LCDParams) {
		p.DelayMs, p.Loops = 1, 1
		p.Messages = []string{"hello\nworld", "bye"}
	}))
	r.waitSay(t, "13_LCD1602 stopped")
	res := stop()
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Contains(t, r.out.String(), "hello\nworld\nbye\n\n")
}

func TestLCDOverI2C(t *testing.T) {
	r := newRig(t)
	stop := r.start(t, "13_LCD1602", with(func(p *LCDParams) {
		p.Transport, p.DelayMs, p.Loops = "i2c", 1, 1
		p.Messages = []string{"hi"}
	}))
	r.waitSay(t, "13_LCD1602 stopped")
	assert.Equal(t, OutcomeCompleted, stop().Outcome)
	assert.NotEmpty(t, r.sim.I2CWrites("i2c1"))
}
