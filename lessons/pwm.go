package lessons

import (
	"context"

	"superkit-go/services/hal/devices/pwm_out"
	"superkit-go/services/hal/devices/rgb_led"
	"superkit-go/types"
)

func init() {
	Register(Entry{Name: "04_PwmLed", Title: "Breathing LED", New: func() Lesson {
		return &breathe{p: BreatheParams{Pin: 18, FreqHz: 1000, Step: 4, DelayMs: 50, HoldMs: 1000}}
	}})
	Register(Entry{Name: "05_RGB", Title: "RGB LED", New: func() Lesson {
		return &rgb{p: RGBParams{Pins: []int{17, 18, 27}, FreqHz: 2000, DelayMs: 500, CycleMs: 1000}}
	}})
}

// ---- 04_PwmLed ----

type BreatheParams struct {
	Pin     int    `koanf:"pin"`
	FreqHz  uint64 `koanf:"freq_hz"`
	Step    uint16 `koanf:"step"` // percent per step
	DelayMs uint32 `koanf:"delay_ms"`
	HoldMs  uint32 `koanf:"hold_ms"`
}

type breathe struct{ p BreatheParams }

func (l *breathe) Params() any { return &l.p }

func (l *breathe) Devices() []types.HALDevice {
	return []types.HALDevice{{ID: "led", Type: "pwm_out", Params: pwm_out.Params{Pin: l.p.Pin, FreqHz: l.p.FreqHz, Top: 100}}}
}

func (l *breathe) Run(ctx context.Context, env *Env) error {
	led := env.Kit.PWM("led")
	step := max(l.p.Step, 1)
	for {
		env.Say("brighter ...")
		for i := uint16(0); i <= 100; i += step {
			if err := led.Set(ctx, i); err != nil {
				return err
			}
			if !env.Sleep(ctx, l.p.DelayMs) {
				return nil
			}
		}
		if !env.Sleep(ctx, l.p.HoldMs) {
			return nil
		}
		env.Say("... dimmer")
		for i := 100; i >= 0; i -= int(step) {
			if err := led.Set(ctx, uint16(i)); err != nil {
				return err
			}
			if !env.Sleep(ctx, l.p.DelayMs) {
				return nil
			}
		}
		if !env.Sleep(ctx, l.p.HoldMs) {
			return nil
		}
	}
}

func (l *breathe) Cleanup(ctx context.Context, env *Env) error { return env.Kit.PWM("led").Set(ctx, 0) }

// ---- 05_RGB ----

// rgbColors walks red, green, blue and white up and down, with cross-fades
// between them.
var rgbColors = [...]uint32{
	0x000000, 0x3F0000, 0x7F0000, 0xBF0000, 0xFF0000,
	0xFF0000, 0xBF3F00, 0x7F7F00, 0x3FBF00, 0x00FF00,
	0x00FF00, 0x00BF00, 0x007F00, 0x003F00, 0x000000,
	0x000000, 0x003F00, 0x007F00, 0x00BF00, 0x00FF00,
	0x00FF00, 0x00BF3F, 0x007F7F, 0x003FBF, 0x0000FF,
	0x0000FF, 0x0000BF, 0x00007F, 0x00003F, 0x000000,
	0x000000, 0x00003F, 0x00007F, 0x0000BF, 0x0000FF,
	0x0000FF, 0x3F00BF, 0x7F007F, 0xBF003F, 0xFF0000,
	0xFF0000, 0xBF0000, 0x7F0000, 0x3F0000, 0x000000,
	0x000000, 0x3F3F3F, 0x7F7F7F, 0xBFBFBF, 0xFFFFFF,
	0xFFFFFF, 0xBFBFBF, 0x7F7F7F, 0x3F3F3F, 0x000000,
}

type RGBParams struct {
	Pins      []int  `koanf:"pins"` // red, green, blue
	FreqHz    uint64 `koanf:"freq_hz"`
	ActiveLow bool   `koanf:"active_low"`
	DelayMs   uint32 `koanf:"delay_ms"`
	CycleMs   uint32 `koanf:"cycle_ms"` // pause after each pass
}

type rgb struct{ p RGBParams }

func (l *rgb) Params() any { return &l.p }

func (l *rgb) Devices() []types.HALDevice {
	var pins [3]int
	copy(pins[:], l.p.Pins)
	return []types.HALDevice{{ID: "rgb", Type: "rgb_led", Params: rgb_led.Params{Pins: pins, FreqHz: l.p.FreqHz, ActiveLow: l.p.ActiveLow}}}
}

func (l *rgb) Run(ctx context.Context, env *Env) error {
	led := env.Kit.RGB("rgb")
	for {
		for _, c := range rgbColors {
			env.Say("color = 0x%06X", c)
			if err := led.Set(ctx, c); err != nil {
				return err
			}
			if !env.Sleep(ctx, l.p.DelayMs) {
				return nil
			}
		}
		if !env.Sleep(ctx, l.p.CycleMs) {
			return nil
		}
	}
}

func (l *rgb) Cleanup(ctx context.Context, env *Env) error { return env.Kit.RGB("rgb").Set(ctx, 0) }
