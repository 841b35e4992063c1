package dc_motor

import (
	"context"

	"superkit-go/services/hal/internal/core"
	"superkit-go/types"
	"superkit-go/x/strx"
)

func init() { core.RegisterBuilder("dc_motor", builder{}) }

type Params struct {
	PinA      int // L293D input 1
	PinB      int // L293D input 2
	PinEnable int
	Domain    string
	Name      string
}

type builder struct{}

func (builder) Build(_ context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := core.Params[Params](in.Params)
	if err != nil {
		return nil, err
	}
	pins := []int{p.PinEnable, p.PinA, p.PinB}
	var got []core.GPIOHandle
	for i, n := range pins {
		ph, err := in.Res.Reg.ClaimPin(in.ID, n, core.FuncGPIOOut)
		if err != nil {
			for _, m := range pins[:i] {
				in.Res.Reg.ReleasePin(in.ID, m)
			}
			return nil, err
		}
		got = append(got, ph.AsGPIO())
	}
	return &Device{
		id:  in.ID,
		p:   p,
		en:  got[0],
		a:   got[1],
		b:   got[2],
		res: in.Res,
		cap: core.CapAddr{Domain: strx.Coalesce(p.Domain, "io"), Kind: types.KindMotor, Name: strx.Coalesce(p.Name, in.ID)},
		dir: types.MotorStop,
	}, nil
}
