// Package rgb_led mixes a common-anode or common-cathode RGB LED from three
// PWM channels. Colours are 0xRRGGBB; each byte scales onto 0..Top.
package rgb_led

import (
	"context"
	"sync"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/types"
	"superkit-go/x/mathx"
	"superkit-go/x/timex"
)

type Device struct {
	id   string
	p    Params
	res  core.Resources
	addr core.CapAddr
	ch   [3]core.PWMHandle

	mu    sync.Mutex
	color uint32
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   types.KindRGB,
		Name:   d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "rgb_led",
			Detail:        types.RGBInfo{Pins: d.p.Pins, FreqHz: d.p.FreqHz, ActiveLow: d.p.ActiveLow},
		},
	}}
}

func (d *Device) Init(context.Context) error {
	for _, c := range d.ch {
		if err := c.Configure(d.p.FreqHz, d.p.Top); err != nil {
			return errcode.Wrap(errcode.MapDriverErr(err), "rgb_led.init", err)
		}
	}
	d.apply(0)
	return nil
}

func (d *Device) Close() error {
	d.apply(0)
	d.release(len(d.ch))
	return nil
}

// release frees the first n claimed pins.
func (d *Device) release(n int) {
	for i := 0; i < n; i++ {
		d.res.Reg.ReleasePin(d.id, d.p.Pins[i])
	}
}

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "set":
		p, code := core.As[types.RGBSet](payload)
		if code != "" {
			return core.Rejected(code), nil
		}
		if p.Color > 0xFFFFFF {
			return core.Rejected(errcode.InvalidPayload), nil
		}
		d.apply(p.Color)
		return core.Accepted(), nil
	case "read":
		d.emitValue()
		return core.Accepted(), nil
	default:
		return core.Rejected(errcode.Unsupported), nil
	}
}

func (d *Device) apply(color uint32) {
	d.mu.Lock()
	d.color = color
	for i, c := range d.ch {
		b := uint8(color >> (16 - 8*i))
		lvl := mathx.ScaleByte(b, d.p.Top)
		if d.p.ActiveLow {
			lvl = d.p.Top - lvl
		}
		c.Set(lvl)
	}
	d.mu.Unlock()
	d.emitValue()
}

func (d *Device) emitValue() {
	d.mu.Lock()
	c := d.color
	d.mu.Unlock()
	d.res.Pub.Emit(core.Event{Addr: d.addr, Payload: types.RGBValue{Color: c}, TSms: timex.NowMs()})
}
