// Package pwm_out exposes one PWM output with a logical level of 0..Top.
package pwm_out

import (
	"context"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/types"
	"superkit-go/x/timex"
)

type Device struct {
	id        string
	pin       int
	pwm       core.PWMHandle
	res       core.Resources
	freq      uint64
	top       uint16
	activeLow bool
	initial   uint16 // initial *logical* level
	addr      core.CapAddr
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   types.KindPWM,
		Name:   d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "pwm_out",
			Detail: types.PWMInfo{
				Pin:       d.pin,
				FreqHz:    d.freq,
				Top:       d.top,
				ActiveLow: d.activeLow,
				Initial:   d.initial,
			},
		},
	}}
}

// --- logical<->physical mapping (invert if ActiveLow) ---

func (d *Device) toPhys(logical uint16) uint16 {
	l := min(logical, d.top)
	if !d.activeLow {
		return l
	}
	return d.top - l
}

func (d *Device) toLogical(phys uint16) uint16 { return d.toPhys(phys) }

func (d *Device) Init(context.Context) error {
	if err := d.pwm.Configure(d.freq, d.top); err != nil {
		return errcode.Wrap(errcode.MapDriverErr(err), "pwm_out.init", err)
	}
	d.pwm.Set(d.toPhys(d.initial))
	d.emitValue()
	return nil
}

// Close stops any ramp, drives logical 0 and releases the pin.
func (d *Device) Close() error {
	d.pwm.StopRamp()
	d.pwm.Set(d.toPhys(0))
	d.res.Reg.ReleasePin(d.id, d.pin)
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "set":
		p, code := core.As[types.PWMSet](payload)
		if code != "" {
			return core.Rejected(code), nil
		}
		d.pwm.Set(d.toPhys(p.Level))
		d.emitValue()
		return core.Accepted(), nil

	case "ramp":
		p, code := core.As[types.PWMRamp](payload)
		if code != "" {
			return core.Rejected(code), nil
		}
		started := d.pwm.Ramp(d.toPhys(p.To), p.DurationMs, p.Steps, core.PWMRampMode(p.Mode), func(uint16) {
			d.emitValue()
		})
		if !started {
			return core.Rejected(errcode.Busy), nil
		}
		return core.Accepted(), nil

	case "stop_ramp":
		d.pwm.StopRamp()
		d.emitValue()
		return core.Accepted(), nil

	case "read":
		d.emitValue()
		return core.Accepted(), nil

	default:
		return core.Rejected(errcode.Unsupported), nil
	}
}

func (d *Device) emitValue() {
	d.res.Pub.Emit(core.Event{
		Addr:    d.addr,
		Payload: types.PWMValue{Level: d.toLogical(d.pwm.Level())},
		TSms:    timex.NowMs(),
	})
}
