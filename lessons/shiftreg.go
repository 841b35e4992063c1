package lessons

import (
	"context"

	"superkit-go/drivers/sevenseg"
	"superkit-go/lessons/kit"
	"superkit-go/services/hal/devices/gpio_button"
	"superkit-go/services/hal/devices/shift_register"
	"superkit-go/types"
)

func init() {
	Register(Entry{Name: "10_74HC595_LED", Title: "Driving LEDs by 74HC595", New: func() Lesson {
		return &hc595LED{p: ShiftParams{SDI: 17, RCLK: 18, SRCLK: 27, DelayMs: 100}}
	}})
	Register(Entry{Name: "11_Segment", Title: "Driving a 7-segment display by 74HC595", New: func() Lesson {
		return &segment{p: ShiftParams{SDI: 17, RCLK: 18, SRCLK: 27, DelayMs: 500}}
	}})
	Register(Entry{Name: "11_Dice", Title: "Dice", New: func() Lesson {
		return &dice{p: DiceParams{ShiftParams: ShiftParams{SDI: 17, RCLK: 18, SRCLK: 27, DelayMs: 10}, Button: 22, HoldMs: 2000}}
	}})
	Register(Entry{Name: "12_DotMatrix", Title: "Driving a dot matrix by 74HC595", New: func() Lesson {
		return &dotMatrix{p: ShiftParams{SDI: 17, RCLK: 18, SRCLK: 27, DelayMs: 100}}
	}})
}

type ShiftParams struct {
	SDI     int    `koanf:"sdi"`
	RCLK    int    `koanf:"rclk"`
	SRCLK   int    `koanf:"srclk"`
	DelayMs uint32 `koanf:"delay_ms"`
}

func (p ShiftParams) device(chain int) types.HALDevice {
	return types.HALDevice{ID: "sr", Type: "shift_register", Params: shift_register.Params{
		SDI: p.SDI, RCLK: p.RCLK, SRCLK: p.SRCLK, Chain: chain,
	}}
}

// writeAll latches each frame in turn with a delay after each.
func writeAll(ctx context.Context, env *Env, delayMs uint32, frames [][]byte) (bool, error) {
	sr := env.Kit.ShiftReg("sr")
	for _, f := range frames {
		if err := sr.Write(ctx, f...); err != nil {
			return false, err
		}
		if !env.Sleep(ctx, delayMs) {
			return false, nil
		}
	}
	return true, nil
}

func reversed(frames [][]byte) [][]byte {
	out := make([][]byte, len(frames))
	for i, f := range frames {
		out[len(frames)-1-i] = f
	}
	return out
}

func clearShiftReg(ctx context.Context, env *Env) error { return env.Kit.ShiftReg("sr").Clear(ctx) }

// ---- 10_74HC595_LED ----

var ledModes = [4][8]byte{
	{0x01, 0x02, 0x04, 0x08, 0x10, 0x20, 0x40, 0x80}, // one at a time
	{0x01, 0x03, 0x07, 0x0f, 0x1f, 0x3f, 0x7f, 0xff}, // fill
	{0x01, 0x05, 0x15, 0x55, 0xb5, 0xf5, 0xfb, 0xff},
	{0x02, 0x03, 0x0b, 0x0f, 0x2f, 0x3f, 0xbf, 0xff},
}

type hc595LED struct{ p ShiftParams }

func (l *hc595LED) Params() any                { return &l.p }
func (l *hc595LED) Devices() []types.HALDevice { return []types.HALDevice{l.p.device(1)} }

func (l *hc595LED) Run(ctx context.Context, env *Env) error {
	for {
		for i, mode := range ledModes {
			frames := make([][]byte, len(mode))
			for j, b := range mode {
				frames[j] = []byte{b}
			}
			env.Say("mode = %d", i)
			env.Say("forward ...")
			if ok, err := writeAll(ctx, env, l.p.DelayMs, frames); !ok {
				return err
			}
			if !env.Sleep(ctx, l.p.DelayMs) {
				return nil
			}
			env.Say("... reverse")
			if ok, err := writeAll(ctx, env, l.p.DelayMs, reversed(frames)); !ok {
				return err
			}
		}
	}
}

func (l *hc595LED) Cleanup(ctx context.Context, env *Env) error { return clearShiftReg(ctx, env) }

// ---- 11_Segment ----

type segment struct{ p ShiftParams }

func (l *segment) Params() any                { return &l.p }
func (l *segment) Devices() []types.HALDevice { return []types.HALDevice{l.p.device(1)} }

// segmentCodes are 0..F then the decimal point alone.
func segmentCodes() []byte {
	return append(sevenseg.Hex[:], sevenseg.DP)
}

func (l *segment) Run(ctx context.Context, env *Env) error {
	sr := env.Kit.ShiftReg("sr")
	codes := segmentCodes()
	show := func(c byte) (bool, error) {
		env.Say("code = %04X", c)
		if err := sr.Write(ctx, c); err != nil {
			return false, err
		}
		return env.Sleep(ctx, l.p.DelayMs), nil
	}
	for {
		env.Say("forward ...")
		for _, c := range codes {
			if ok, err := show(c); !ok {
				return err
			}
		}
		env.Say("... reverse")
		for i := len(codes) - 1; i >= 0; i-- {
			if ok, err := show(codes[i]); !ok {
				return err
			}
		}
		if !env.Sleep(ctx, l.p.DelayMs) {
			return nil
		}
	}
}

func (l *segment) Cleanup(ctx context.Context, env *Env) error { return clearShiftReg(ctx, env) }

// ---- 11_Dice ----

type DiceParams struct {
	ShiftParams `koanf:",squash"`
	Button      int    `koanf:"button"`
	HoldMs      uint32 `koanf:"hold_ms"`
}

type dice struct{ p DiceParams }

func (l *dice) Params() any { return &l.p }

func (l *dice) Devices() []types.HALDevice {
	return []types.HALDevice{
		l.p.device(1),
		{ID: "button", Type: "gpio_button", Params: gpio_button.Params{Pin: l.p.Button, Pull: "up", Invert: true}},
	}
}

// Run flashes the faces in turn; a press stops on a random face and holds it.
func (l *dice) Run(ctx context.Context, env *Env) error {
	sub := env.Kit.Values(kit.IO(types.KindButton, "button"))
	defer sub.Unsubscribe()
	sr := env.Kit.ShiftReg("sr")
	pressed := false

	env.Say("Press button to roll ...")
	for {
		for _, face := range sevenseg.Dice {
			if err := sr.Write(ctx, face); err != nil {
				return err
			}
			// Latest button state, without blocking.
		drain:
			for {
				select {
				case m := <-sub.Channel():
					if v, ok := m.Payload.(types.ButtonValue); ok {
						pressed = v.Pressed
					}
				default:
					break drain
				}
			}
			if !pressed {
				if !env.Sleep(ctx, l.p.DelayMs) {
					return nil
				}
				continue
			}
			n := env.Rand.IntN(len(sevenseg.Dice)) + 1
			f, _ := sevenseg.Face(n)
			if err := sr.Write(ctx, f); err != nil {
				return err
			}
			env.Say("number = %d", n)
			if !env.Sleep(ctx, l.p.HoldMs) {
				return nil
			}
		}
	}
}

func (l *dice) Cleanup(ctx context.Context, env *Env) error { return clearShiftReg(ctx, env) }

// ---- 12_DotMatrix ----

// Row (high) and column (low, active low) bytes for each frame.
var (
	matrixHigh = [20]byte{
		0x01, 0xff, 0x80, 0xff, 0x01, 0x02, 0x04, 0x08, 0x10, 0x20,
		0x40, 0x80, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	}
	matrixLow = [20]byte{
		0x00, 0x7f, 0x00, 0xfe, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0xfe, 0xfd, 0xfb, 0xf7, 0xef, 0xdf, 0xbf, 0x7f,
	}
)

type dotMatrix struct{ p ShiftParams }

func (l *dotMatrix) Params() any                { return &l.p }
func (l *dotMatrix) Devices() []types.HALDevice { return []types.HALDevice{l.p.device(2)} }

func (l *dotMatrix) Run(ctx context.Context, env *Env) error {
	frames := make([][]byte, len(matrixHigh))
	for i := range frames {
		// The low byte goes in first and ends up in the far register.
		frames[i] = []byte{matrixLow[i], matrixHigh[i]}
	}
	for {
		env.Say("forward ...")
		if ok, err := writeAll(ctx, env, l.p.DelayMs, frames); !ok {
			return err
		}
		env.Say("... reverse")
		if ok, err := writeAll(ctx, env, l.p.DelayMs, reversed(frames)); !ok {
			return err
		}
		if !env.Sleep(ctx, l.p.DelayMs) {
			return nil
		}
	}
}

func (l *dotMatrix) Cleanup(ctx context.Context, env *Env) error { return clearShiftReg(ctx, env) }
