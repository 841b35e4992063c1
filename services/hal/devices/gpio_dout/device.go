// Package gpio_dout drives a single digital output: an LED or a switch.
package gpio_dout

import (
	"context"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/types"
	"superkit-go/x/strx"
	"superkit-go/x/timex"
)

type Params struct {
	Pin       int
	ActiveLow bool // LED wired from 3V3 to the pin: low = on
	Initial   bool // logical
	Domain    string
	Name      string
}

type Role int

const (
	RoleLED Role = iota
	RoleSwitch
)

type Device struct {
	id        string
	pin       core.GPIOHandle
	pinN      int
	activeLow bool
	initial   bool
	role      Role
	res       core.Resources
	addr      core.CapAddr
}

func New(role Role, id string, p Params, h core.GPIOHandle, res core.Resources) *Device {
	kind := types.KindLED
	if role == RoleSwitch {
		kind = types.KindSwitch
	}
	dom := "io"
	if role == RoleSwitch {
		dom = "power"
	}
	return &Device{
		id:        id,
		pin:       h,
		pinN:      p.Pin,
		activeLow: p.ActiveLow,
		initial:   p.Initial,
		role:      role,
		res:       res,
		addr:      core.CapAddr{Domain: strx.Coalesce(p.Domain, dom), Kind: kind, Name: strx.Coalesce(p.Name, id)},
	}
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	var detail any = types.LEDInfo{Pin: d.pinN, ActiveLow: d.activeLow}
	if d.role == RoleSwitch {
		detail = types.SwitchInfo{Pin: d.pinN}
	}
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   d.addr.Kind,
		Name:   d.addr.Name,
		Info:   types.Info{SchemaVersion: 1, Driver: "gpio_dout", Detail: detail},
	}}
}

func (d *Device) Init(context.Context) error {
	if err := d.pin.ConfigureOutput(d.physical(d.initial)); err != nil {
		return errcode.Wrap(errcode.IOError, "gpio_dout.init", err)
	}
	d.emitValue()
	return nil
}

// Close drives the output to logical off and releases the pin.
func (d *Device) Close() error {
	d.pin.Set(d.physical(false))
	d.res.Reg.ReleasePin(d.id, d.pinN)
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "set":
		var on bool
		if d.role == RoleSwitch {
			p, code := core.As[types.SwitchSet](payload)
			if code != "" {
				return core.Rejected(code), nil
			}
			on = p.On
		} else {
			p, code := core.As[types.LEDSet](payload)
			if code != "" {
				return core.Rejected(code), nil
			}
			on = p.On
		}
		d.pin.Set(d.physical(on))
	case "toggle":
		d.pin.Toggle()
	case "read":
	default:
		return core.Rejected(errcode.Unsupported), nil
	}
	d.emitValue()
	return core.Accepted(), nil
}

func (d *Device) physical(on bool) bool { return on != d.activeLow }

func (d *Device) logical() bool { return d.pin.Get() != d.activeLow }

func (d *Device) emitValue() {
	var v any = types.LEDValue{On: d.logical()}
	if d.role == RoleSwitch {
		v = types.SwitchValue{On: d.logical()}
	}
	d.res.Pub.Emit(core.Event{Addr: d.addr, Payload: v, TSms: timex.NowMs()})
}
