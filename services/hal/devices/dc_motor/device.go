// Package dc_motor drives a DC motor through one half of an L293D: two
// direction inputs and an enable line.
package dc_motor

import (
	"context"
	"sync"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/types"
	"superkit-go/x/timex"
)

type Device struct {
	id       string
	p        Params
	en, a, b core.GPIOHandle
	res      core.Resources
	cap      core.CapAddr

	mu  sync.Mutex
	dir types.MotorDirection
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.cap.Domain,
		Kind:   types.KindMotor,
		Name:   d.cap.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "dc_motor",
			Detail:        types.MotorInfo{PinA: d.p.PinA, PinB: d.p.PinB, PinEnable: d.p.PinEnable},
		},
	}}
}

func (d *Device) Init(context.Context) error {
	// Enable first so the bridge is off while the inputs settle.
	for _, g := range []core.GPIOHandle{d.en, d.a, d.b} {
		if err := g.ConfigureOutput(false); err != nil {
			return errcode.Wrap(errcode.IOError, "dc_motor.init", err)
		}
	}
	d.emitValue()
	return nil
}

func (d *Device) Close() error {
	d.drive(types.MotorStop)
	for _, n := range []int{d.p.PinEnable, d.p.PinA, d.p.PinB} {
		d.res.Reg.ReleasePin(d.id, n)
	}
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "set":
		p, code := core.As[types.MotorSet](payload)
		if code != "" {
			return core.Rejected(code), nil
		}
		switch p.Direction {
		case types.MotorStop, types.MotorClockwise, types.MotorCounterClockwise:
		default:
			return core.Rejected(errcode.InvalidPayload), nil
		}
		d.drive(p.Direction)
		d.emitValue()
		return core.Accepted(), nil
	case "read":
		d.emitValue()
		return core.Accepted(), nil
	default:
		return core.Rejected(errcode.Unsupported), nil
	}
}

// drive always drops enable before touching the direction inputs.
func (d *Device) drive(dir types.MotorDirection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.en.Set(false)
	switch dir {
	case types.MotorClockwise:
		d.a.Set(true)
		d.b.Set(false)
	case types.MotorCounterClockwise:
		d.a.Set(false)
		d.b.Set(true)
	default:
		d.dir = types.MotorStop
		return
	}
	d.en.Set(true)
	d.dir = dir
}

func (d *Device) emitValue() {
	d.mu.Lock()
	dir := d.dir
	d.mu.Unlock()
	d.res.Pub.Emit(core.Event{Addr: d.cap, Payload: types.MotorValue{Direction: dir}, TSms: timex.NowMs()})
}
