package rgb_led

import (
	"context"

	"superkit-go/services/hal/internal/core"
	"superkit-go/types"
	"superkit-go/x/strx"
)

func init() { core.RegisterBuilder("rgb_led", builder{}) }

type Params struct {
	Pins      [3]int // red, green, blue
	FreqHz    uint64 // default 2000
	Top       uint16 // default 255
	ActiveLow bool
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
		p.FreqHz = 2000
	}
	if p.Top == 0 {
		p.Top = 255
	}
	d := &Device{
		id:   in.ID,
		p:    p,
		res:  in.Res,
		addr: core.CapAddr{Domain: strx.Coalesce(p.Domain, "io"), Kind: types.KindRGB, Name: strx.Coalesce(p.Name, in.ID)},
	}
	for i, n := range p.Pins {
		ph, err := in.Res.Reg.ClaimPin(in.ID, n, core.FuncPWM)
		if err != nil {
			d.release(i)
			return nil, err
		}
		d.ch[i] = ph.AsPWM()
	}
	return d, nil
}
