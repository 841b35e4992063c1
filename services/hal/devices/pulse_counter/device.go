// Package pulse_counter counts edges on one input, for example the output of
// a 555 astable.
package pulse_counter

import (
	"context"
	"sync/atomic"
	"time"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/services/hal/internal/halcore"
	"superkit-go/types"
	"superkit-go/x/timex"
)

type Device struct {
	id       string
	p        Params
	gpio     core.GPIOHandle
	edge     core.Edge
	res      core.Resources
	a        core.CapAddr
	debounce time.Duration

	count atomic.Uint64
	es    core.GPIOEdgeStream
	done  chan struct{}
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.a.Domain,
		Kind:   types.KindCounter,
		Name:   d.a.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "pulse_counter",
			Detail:        types.CounterInfo{Pin: d.p.Pin, Edge: d.edge.String()},
		},
		PollEvery: time.Duration(d.p.PollMs) * time.Millisecond,
	}}
}

func (d *Device) Init(context.Context) error {
	if err := d.gpio.ConfigureInput(halcore.ParsePull(d.p.Pull)); err != nil {
		return errcode.Wrap(errcode.IOError, "pulse_counter.init", err)
	}
	// Deep buffer: a 555 can outrun the consumer in short bursts.
	es, err := d.res.Reg.SubscribeGPIOEdges(d.id, d.p.Pin, d.edge, d.debounce, false, 256)
	if err != nil {
		return err
	}
	d.es = es
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		for range es.Events() {
			d.count.Add(1)
		}
	}()
	d.emitValue()
	return nil
}

func (d *Device) Close() error {
	if d.es != nil {
		d.es.Close()
		<-d.done
	}
	d.res.Reg.ReleasePin(d.id, d.p.Pin)
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, _ any) (core.EnqueueResult, error) {
	switch verb {
	case "read":
		d.emitValue()
		return core.Accepted(), nil
	case "reset":
		d.count.Store(0)
		d.emitValue()
		return core.Accepted(), nil
	default:
		return core.Rejected(errcode.Unsupported), nil
	}
}

func (d *Device) emitValue() {
	d.res.Pub.Emit(core.Event{Addr: d.a, Payload: types.CounterValue{Count: d.count.Load()}, TSms: timex.NowMs()})
}
