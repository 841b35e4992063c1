package lessons

import (
	"context"

	"superkit-go/lessons/kit"
	"superkit-go/services/hal/devices/gpio_button"
	"superkit-go/types"
)

func init() {
	Register(Entry{Name: "02_BtnAndLed", Title: "Controlling an LED by a button", New: func() Lesson {
		return &btnLED{p: BtnLEDParams{Button: 18, LED: 17, DebounceMs: 20}}
	}})
}

type BtnLEDParams struct {
	Button     int    `koanf:"button"`
	LED        int    `koanf:"led"`
	DebounceMs uint16 `koanf:"debounce_ms"`
}

// btnLED follows the button edge by edge rather than sampling it.
type btnLED struct{ p BtnLEDParams }

func (l *btnLED) Params() any { return &l.p }

func (l *btnLED) Devices() []types.HALDevice {
	return []types.HALDevice{
		// Pull-up; pressing shorts the pin to ground.
		{ID: "button", Type: "gpio_button", Params: gpio_button.Params{Pin: l.p.Button, Pull: "up", Invert: true, DebounceMs: l.p.DebounceMs}},
		ledDevice("led", l.p.LED),
	}
}

func (l *btnLED) Run(ctx context.Context, env *Env) error {
	sub := env.Kit.Values(kit.IO(types.KindButton, "button"))
	defer sub.Unsubscribe()
	led := env.Kit.LED("led")
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-sub.Channel():
			v, ok := m.Payload.(types.ButtonValue)
			if !ok {
				continue
			}
			if v.Pressed {
				env.Say("... led on")
			} else {
				env.Say("led off ...")
			}
			if err := led.Set(ctx, v.Pressed); err != nil {
				return err
			}
		}
	}
}

func (l *btnLED) Cleanup(ctx context.Context, env *Env) error { return env.Kit.LED("led").Off(ctx) }
