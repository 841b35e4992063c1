package gpio_button

import (
	"context"
	"time"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/types"
	"superkit-go/x/strx"
)

func init() { core.RegisterBuilder("gpio_button", builder{}) }

type Params struct {
	Pin        int
	Pull       string // "none","up","down"
	Invert     bool   // true if pressed == low
	DebounceMs uint16
	Domain     string
	Name       string
}

type builder struct{}

func (builder) Build(_ context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := core.Params[Params](in.Params)
	if err != nil {
		return nil, err
	}
	switch p.Pull {
	case "", "none", "up", "down":
	default:
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "gpio_button", Msg: "pull " + p.Pull}
	}

	ph, err := in.Res.Reg.ClaimPin(in.ID, p.Pin, core.FuncGPIOIn)
	if err != nil {
		return nil, err
	}
	return &Device{
		id:       in.ID,
		pinN:     p.Pin,
		gpio:     ph.AsGPIO(),
		pull:     p.Pull,
		invert:   p.Invert,
		res:      in.Res,
		a:        core.CapAddr{Domain: strx.Coalesce(p.Domain, "io"), Kind: types.KindButton, Name: strx.Coalesce(p.Name, in.ID)},
		debounce: time.Duration(p.DebounceMs) * time.Millisecond,
	}, nil
}
