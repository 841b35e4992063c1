package pwm_out

import (
	"context"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/types"
	"superkit-go/x/strx"
)

func init() { core.RegisterBuilder("pwm_out", builder{}) }

type Params struct {
	Pin       int
	FreqHz    uint64 // desired frequency
	Top       uint16 // logical resolution, 0..Top
	ActiveLow bool
	Initial   uint16 // logical
	Domain    string
	Name      string
}

type builder struct{}

func (builder) Build(_ context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := core.Params[Params](in.Params)
	if err != nil {
		return nil, err
	}
	if p.FreqHz == 0 {
		p.FreqHz = 1000
	}
	if p.Top == 0 {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "pwm_out", Msg: "top must be > 0"}
	}
	ph, err := in.Res.Reg.ClaimPin(in.ID, p.Pin, core.FuncPWM)
	if err != nil {
		return nil, err
	}
	return &Device{
		id:        in.ID,
		pin:       p.Pin,
		pwm:       ph.AsPWM(),
		res:       in.Res,
		freq:      p.FreqHz,
		top:       p.Top,
		activeLow: p.ActiveLow,
		initial:   p.Initial,
		addr:      core.CapAddr{Domain: strx.Coalesce(p.Domain, "io"), Kind: types.KindPWM, Name: strx.Coalesce(p.Name, in.ID)},
	}, nil
}
