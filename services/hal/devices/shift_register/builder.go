package shift_register

import (
	"context"

	"superkit-go/drivers/hc595"
	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/types"
	"superkit-go/x/strx"
)

func init() { core.RegisterBuilder("shift_register", builder{}) }

type Params struct {
	SDI    int
	RCLK   int
	SRCLK  int
	Chain  int // cascaded registers, default 1
	Domain string
	Name   string
}

type builder struct{}

func (builder) Build(_ context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := core.Params[Params](in.Params)
	if err != nil {
		return nil, err
	}
	if p.Chain == 0 {
		p.Chain = 1
	}
	if p.Chain < 0 || p.Chain > 8 {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "shift_register", Msg: "chain must be 1..8"}
	}

	pins := []int{p.SDI, p.RCLK, p.SRCLK}
	h := make([]core.GPIOHandle, 0, len(pins))
	for i, n := range pins {
		ph, err := in.Res.Reg.ClaimPin(in.ID, n, core.FuncGPIOOut)
		if err != nil {
			for _, m := range pins[:i] {
				in.Res.Reg.ReleasePin(in.ID, m)
			}
			return nil, err
		}
		h = append(h, ph.AsGPIO())
	}
	return &Device{
		id:   in.ID,
		p:    p,
		pins: h,
		drv:  hc595.New(h[0], h[1], h[2]),
		res:  in.Res,
		a:    core.CapAddr{Domain: strx.Coalesce(p.Domain, "io"), Kind: types.KindShiftReg, Name: strx.Coalesce(p.Name, in.ID)},
	}, nil
}
