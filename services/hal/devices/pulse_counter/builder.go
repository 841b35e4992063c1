package pulse_counter

import (
	"context"
	"time"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/services/hal/internal/halcore"
	"superkit-go/types"
	"superkit-go/x/strx"
)

func init() { core.RegisterBuilder("pulse_counter", builder{}) }

type Params struct {
	Pin        int
	Pull       string // default "up"
	Edge       string // "rising" (default), "falling" or "both"
	DebounceMs uint16
	PollMs     uint32 // publish the count this often; 0 for read-only
	Domain     string
	Name       string
}

type builder struct{}

func (builder) Build(_ context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := core.Params[Params](in.Params)
	if err != nil {
		return nil, err
	}
	p.Pull = strx.Coalesce(p.Pull, "up")
	p.Edge = strx.Coalesce(p.Edge, "rising")
	switch p.Pull {
	case "none", "up", "down":
	default:
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "pulse_counter", Msg: "pull " + p.Pull}
	}
	edge := halcore.ParseEdge(p.Edge)
	if edge == core.EdgeNone {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "pulse_counter", Msg: "edge " + p.Edge}
	}

	ph, err := in.Res.Reg.ClaimPin(in.ID, p.Pin, core.FuncGPIOIn)
	if err != nil {
		return nil, err
	}
	return &Device{
		id:       in.ID,
		p:        p,
		gpio:     ph.AsGPIO(),
		edge:     edge,
		res:      in.Res,
		a:        core.CapAddr{Domain: strx.Coalesce(p.Domain, "io"), Kind: types.KindCounter, Name: strx.Coalesce(p.Name, in.ID)},
		debounce: time.Duration(p.DebounceMs) * time.Millisecond,
	}, nil
}
