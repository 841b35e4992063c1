package rotary_encoder

import (
	"context"
	"time"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/types"
	"superkit-go/x/strx"
)

func init() { core.RegisterBuilder("rotary_encoder", builder{}) }

type Params struct {
	CLK    int
	DT     int
	SW     int    // push switch, active low with pull-up; 0 if not wired
	PollMs uint32 // default 10
	Domain string
	Name   string
}

type builder struct{}

func (builder) Build(_ context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := core.Params[Params](in.Params)
	if err != nil {
		return nil, err
	}
	if p.PollMs == 0 {
		p.PollMs = 10
	}
	if p.CLK == p.DT || (p.SW != 0 && (p.SW == p.CLK || p.SW == p.DT)) {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "rotary_encoder", Msg: "pins must differ"}
	}

	pins := []int{p.CLK, p.DT}
	if p.SW != 0 {
		pins = append(pins, p.SW)
	}
	h := make([]core.GPIOHandle, 0, len(pins))
	for i, n := range pins {
		ph, err := in.Res.Reg.ClaimPin(in.ID, n, core.FuncGPIOIn)
		if err != nil {
			for _, m := range pins[:i] {
				in.Res.Reg.ReleasePin(in.ID, m)
			}
			return nil, err
		}
		h = append(h, ph.AsGPIO())
	}
	d := &Device{
		id:    in.ID,
		p:     p,
		pins:  pins,
		clk:   h[0],
		dt:    h[1],
		res:   in.Res,
		a:     core.CapAddr{Domain: strx.Coalesce(p.Domain, "io"), Kind: types.KindEncoder, Name: strx.Coalesce(p.Name, in.ID)},
		every: time.Duration(p.PollMs) * time.Millisecond,
	}
	if p.SW != 0 {
		d.sw = h[2]
	}
	return d, nil
}
