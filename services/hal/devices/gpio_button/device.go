// Package gpio_button publishes debounced press/release edges of a push
// button as events, and its current state as a value.
package gpio_button

import (
	"context"
	"time"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/services/hal/internal/halcore"
	"superkit-go/types"
	"superkit-go/x/timex"
)

type Device struct {
	id     string
	pinN   int
	gpio   core.GPIOHandle
	pull   string
	invert bool
	res    core.Resources
	a      core.CapAddr

	debounce time.Duration
	es       core.GPIOEdgeStream
	done     chan struct{}
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.a.Domain,
		Kind:   types.KindButton,
		Name:   d.a.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "gpio_button",
			Detail:        types.ButtonInfo{Pin: d.pinN, Pull: halcore.ParsePull(d.pull).String()},
		},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	if err := d.gpio.ConfigureInput(halcore.ParsePull(d.pull)); err != nil {
		return errcode.Wrap(errcode.IOError, "gpio_button.init", err)
	}
	d.emitValue(d.pressed())

	es, err := d.res.Reg.SubscribeGPIOEdges(d.id, d.pinN, core.EdgeBoth, d.debounce, d.invert, 8)
	if err != nil {
		// Still readable by polling; report degraded.
		d.res.Pub.Emit(core.Event{Addr: d.a, Err: string(errcode.Of(err)), TSms: timex.NowMs()})
		return nil
	}
	d.es = es
	d.done = make(chan struct{})
	go d.edgeLoop()
	return nil
}

func (d *Device) Close() error {
	if d.es != nil {
		d.es.Close()
		<-d.done
	}
	d.res.Reg.ReleasePin(d.id, d.pinN)
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, _ any) (core.EnqueueResult, error) {
	switch verb {
	case "read":
		d.emitValue(d.pressed())
		return core.Accepted(), nil
	default:
		return core.Rejected(errcode.Unsupported), nil
	}
}

func (d *Device) edgeLoop() {
	defer close(d.done)
	for ev := range d.es.Events() {
		// ev.Level is already logical (inversion applied by the edge worker).
		tag := "released"
		if ev.Level {
			tag = "pressed"
		}
		ts := ev.TS.UnixMilli()
		d.res.Pub.Emit(core.Event{Addr: d.a, EventTag: tag, IsEvent: true, Payload: types.ButtonValue{Pressed: ev.Level}, TSms: ts})
		d.res.Pub.Emit(core.Event{Addr: d.a, Payload: types.ButtonValue{Pressed: ev.Level}, TSms: ts})
	}
}

func (d *Device) pressed() bool { return d.gpio.Get() != d.invert }

func (d *Device) emitValue(pressed bool) {
	d.res.Pub.Emit(core.Event{Addr: d.a, Payload: types.ButtonValue{Pressed: pressed}, TSms: timex.NowMs()})
}
