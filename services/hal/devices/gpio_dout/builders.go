package gpio_dout

import (
	"context"

	"superkit-go/services/hal/internal/core"
)

func init() {
	core.RegisterBuilder("gpio_led", builder{role: RoleLED})
	core.RegisterBuilder("gpio_switch", builder{role: RoleSwitch})
}

type builder struct{ role Role }

func (b builder) Build(_ context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := core.Params[Params](in.Params)
	if err != nil {
		return nil, err
	}
	ph, err := in.Res.Reg.ClaimPin(in.ID, p.Pin, core.FuncGPIOOut)
	if err != nil {
		return nil, err
	}
	return New(b.role, in.ID, p, ph.AsGPIO(), in.Res), nil
}
