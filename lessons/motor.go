package lessons

import (
	"context"

	"superkit-go/services/hal/devices/dc_motor"
	"superkit-go/types"
)

func init() {
	Register(Entry{Name: "07_Motor", Title: "DC motor", New: func() Lesson {
		return &motor{p: MotorParams{PinA: 17, PinB: 18, Enable: 27, PhaseMs: 5000}}
	}})
}

type MotorParams struct {
	PinA    int    `koanf:"pin_a"`
	PinB    int    `koanf:"pin_b"`
	Enable  int    `koanf:"enable"`
	PhaseMs uint32 `koanf:"phase_ms"`
}

type motor struct{ p MotorParams }

func (l *motor) Params() any { return &l.p }

func (l *motor) Devices() []types.HALDevice {
	return []types.HALDevice{{ID: "motor", Type: "dc_motor", Params: dc_motor.Params{PinA: l.p.PinA, PinB: l.p.PinB, PinEnable: l.p.Enable}}}
}

func (l *motor) Run(ctx context.Context, env *Env) error {
	m := env.Kit.Motor("motor")
	phases := []struct {
		say string
		dir types.MotorDirection
	}{
		{"motor clockwise ...", types.MotorClockwise},
		{"stopped", types.MotorStop},
		{"motor counter-clockwise ...", types.MotorCounterClockwise},
		{"stopped", types.MotorStop},
	}
	for {
		for _, ph := range phases {
			env.Say(ph.say)
			if err := m.Set(ctx, ph.dir); err != nil {
				return err
			}
			if !env.Sleep(ctx, l.p.PhaseMs) {
				return nil
			}
		}
	}
}

func (l *motor) Cleanup(ctx context.Context, env *Env) error {
	return env.Kit.Motor("motor").Set(ctx, types.MotorStop)
}
