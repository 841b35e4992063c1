package lessons

import (
	"context"
	"fmt"

	"superkit-go/services/hal/devices/gpio_dout"
	"superkit-go/types"
)

func init() {
	Register(Entry{Name: "01_LED", Title: "Blinking LED", New: func() Lesson { return &blink{p: BlinkParams{Pin: 17, DelayMs: 500}} }})
	Register(Entry{Name: "03_8Led", Title: "Flowing LED lights", New: func() Lesson {
		return &flow{p: FlowParams{Pins: []int{17, 18, 27, 22, 23, 24, 25, 4}, DelayMs: 50}}
	}})
}

// The kit's LEDs are wired from 3V3 through the LED to the pin, so they are
// lit when the pin is low.
func ledDevice(id string, pin int) types.HALDevice {
	return types.HALDevice{ID: id, Type: "gpio_led", Params: gpio_dout.Params{Pin: pin, ActiveLow: true}}
}

// ---- 01_LED ----

type BlinkParams struct {
	Pin     int    `koanf:"pin"`
	DelayMs uint32 `koanf:"delay_ms"`
}

type blink struct{ p BlinkParams }

func (l *blink) Params() any { return &l.p }

func (l *blink) Devices() []types.HALDevice {
	return []types.HALDevice{ledDevice("led", l.p.Pin)}
}

func (l *blink) Run(ctx context.Context, env *Env) error {
	led := env.Kit.LED("led")
	for {
		env.Say("... led on")
		if err := led.On(ctx); err != nil {
			return err
		}
		if !env.Sleep(ctx, l.p.DelayMs) {
			return nil
		}
		env.Say("led off ...")
		if err := led.Off(ctx); err != nil {
			return err
		}
		if !env.Sleep(ctx, l.p.DelayMs) {
			return nil
		}
	}
}

func (l *blink) Cleanup(ctx context.Context, env *Env) error { return env.Kit.LED("led").Off(ctx) }

// ---- 03_8Led ----

type FlowParams struct {
	Pins    []int  `koanf:"pins"`
	DelayMs uint32 `koanf:"delay_ms"`
}

type flow struct{ p FlowParams }

func (l *flow) Params() any { return &l.p }

func (l *flow) Devices() []types.HALDevice {
	devs := make([]types.HALDevice, len(l.p.Pins))
	for i, pin := range l.p.Pins {
		devs[i] = ledDevice(flowID(i), pin)
	}
	return devs
}

func flowID(i int) string { return fmt.Sprintf("led%d", i) }

func (l *flow) Run(ctx context.Context, env *Env) error {
	n := len(l.p.Pins)
	for {
		env.Say("forward ...")
		for i := 0; i < n; i++ {
			if ok, err := l.flash(ctx, env, i); !ok {
				return err
			}
		}
		env.Say("... reverse")
		for i := n - 1; i >= 0; i-- {
			if ok, err := l.flash(ctx, env, i); !ok {
				return err
			}
		}
	}
}

// flash lights LED i for one delay. ok is false once the lesson must stop.
func (l *flow) flash(ctx context.Context, env *Env, i int) (ok bool, err error) {
	led := env.Kit.LED(flowID(i))
	if err := led.On(ctx); err != nil {
		return false, err
	}
	slept := env.Sleep(ctx, l.p.DelayMs)
	if err := led.Off(ctx); err != nil && slept {
		return false, err
	}
	return slept, nil
}

func (l *flow) Cleanup(ctx context.Context, env *Env) error {
	for i := range l.p.Pins {
		if err := env.Kit.LED(flowID(i)).Off(ctx); err != nil {
			return err
		}
	}
	return nil
}
