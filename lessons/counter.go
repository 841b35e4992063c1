package lessons

import (
	"context"

	"superkit-go/services/hal/devices/pulse_counter"
	"superkit-go/services/hal/devices/rotary_encoder"
	"superkit-go/types"
)

func init() {
	Register(Entry{Name: "08_RotaryEncoder", Title: "Rotary encoder", New: func() Lesson {
		return &encoder{p: EncoderParams{DT: 17, CLK: 18, SW: 27, PollMs: 10}}
	}})
	Register(Entry{Name: "09_timer555", Title: "555 timer", New: func() Lesson {
		return &timer555{p: Timer555Params{Pin: 17, DelayMs: 50}}
	}})
}

// ---- 08_RotaryEncoder ----

type EncoderParams struct {
	DT     int    `koanf:"dt"`
	CLK    int    `koanf:"clk"`
	SW     int    `koanf:"sw"`
	PollMs uint32 `koanf:"poll_ms"`
}

type encoder struct{ p EncoderParams }

func (l *encoder) Params() any { return &l.p }

func (l *encoder) Devices() []types.HALDevice {
	return []types.HALDevice{{ID: "encoder", Type: "rotary_encoder", Params: rotary_encoder.Params{
		CLK: l.p.CLK, DT: l.p.DT, SW: l.p.SW, PollMs: l.p.PollMs,
	}}}
}

// Run prints the count every time the HAL publishes it: on each detent and
// on each press of the switch.
func (l *encoder) Run(ctx context.Context, env *Env) error {
	sub := env.Kit.Values(env.Kit.Counter(types.KindEncoder, "encoder").Cap())
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-sub.Channel():
			if v, ok := m.Payload.(types.EncoderValue); ok {
				env.Say("counter = %d", v.Count)
			}
		}
	}
}

// ---- 09_timer555 ----

type Timer555Params struct {
	Pin     int    `koanf:"pin"`
	DelayMs uint32 `koanf:"delay_ms"`
}

type timer555 struct{ p Timer555Params }

func (l *timer555) Params() any { return &l.p }

// The HAL polls the counter at the print rate, so each published value is
// one line of output.
func (l *timer555) Devices() []types.HALDevice {
	return []types.HALDevice{{ID: "timer", Type: "pulse_counter", Params: pulse_counter.Params{
		Pin: l.p.Pin, Pull: "up", Edge: "rising", PollMs: l.p.DelayMs,
	}}}
}

func (l *timer555) Run(ctx context.Context, env *Env) error {
	sub := env.Kit.Values(env.Kit.Counter(types.KindCounter, "timer").Cap())
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-sub.Channel():
			if v, ok := m.Payload.(types.CounterValue); ok {
				env.Say("counter = %d", v.Count)
			}
		}
	}
}
