// Package rotary_encoder decodes a KY-040 style encoder by sampling CLK and
// DT, and resets its count when the push switch closes.
package rotary_encoder

import (
	"context"
	"sync"
	"time"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/types"
	"superkit-go/x/timex"
)

type Device struct {
	id      string
	p       Params
	pins    []int
	clk, dt core.GPIOHandle
	sw      core.GPIOHandle // nil if not wired
	res     core.Resources
	a       core.CapAddr
	every   time.Duration

	mu    sync.Mutex
	count int32

	es   core.GPIOEdgeStream
	stop chan struct{}
	wg   sync.WaitGroup
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.a.Domain,
		Kind:   types.KindEncoder,
		Name:   d.a.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "rotary_encoder",
			Detail:        types.EncoderInfo{CLK: d.p.CLK, DT: d.p.DT, SW: d.p.SW, PollMs: d.p.PollMs},
		},
	}}
}

func (d *Device) Init(context.Context) error {
	for _, g := range []core.GPIOHandle{d.clk, d.dt} {
		if err := g.ConfigureInput(core.PullNone); err != nil {
			return errcode.Wrap(errcode.IOError, "rotary_encoder.init", err)
		}
	}
	d.stop = make(chan struct{})
	if d.sw != nil {
		if err := d.sw.ConfigureInput(core.PullUp); err != nil {
			return errcode.Wrap(errcode.IOError, "rotary_encoder.init", err)
		}
		es, err := d.res.Reg.SubscribeGPIOEdges(d.id, d.p.SW, core.EdgeFalling, 0, false, 4)
		if err != nil {
			return err
		}
		d.es = es
		d.wg.Add(1)
		go d.switchLoop()
	}
	d.emitValue()
	d.wg.Add(1)
	go d.pollLoop(d.clk.Get())
	return nil
}

func (d *Device) Close() error {
	if d.stop != nil {
		close(d.stop)
	}
	if d.es != nil {
		d.es.Close()
	}
	d.wg.Wait()
	for _, n := range d.pins {
		d.res.Reg.ReleasePin(d.id, n)
	}
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, _ any) (core.EnqueueResult, error) {
	switch verb {
	case "read":
		d.emitValue()
		return core.Accepted(), nil
	case "reset":
		d.reset()
		return core.Accepted(), nil
	default:
		return core.Rejected(errcode.Unsupported), nil
	}
}

// pollLoop samples at the configured rate from the CLK level seen in Init.
// A CLK change with DT at the other level is a clockwise detent.
func (d *Device) pollLoop(last bool) {
	defer d.wg.Done()
	t := time.NewTicker(d.every)
	defer t.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-t.C:
		}
		clk := d.clk.Get()
		if clk == last {
			continue
		}
		last = clk
		delta := int8(-1)
		if d.dt.Get() != clk {
			delta = 1
		}
		d.mu.Lock()
		d.count += int32(delta)
		n := d.count
		d.mu.Unlock()

		ts := timex.NowMs()
		d.res.Pub.Emit(core.Event{Addr: d.a, EventTag: "rotated", IsEvent: true, Payload: types.EncoderStep{Delta: delta, Count: n}, TSms: ts})
		d.res.Pub.Emit(core.Event{Addr: d.a, Payload: types.EncoderValue{Count: n}, TSms: ts})
	}
}

func (d *Device) switchLoop() {
	defer d.wg.Done()
	for range d.es.Events() {
		d.reset()
	}
}

func (d *Device) reset() {
	d.mu.Lock()
	d.count = 0
	d.mu.Unlock()
	d.emitValue()
}

func (d *Device) emitValue() {
	d.mu.Lock()
	n := d.count
	d.mu.Unlock()
	d.res.Pub.Emit(core.Event{Addr: d.a, Payload: types.EncoderValue{Count: n}, TSms: timex.NowMs()})
}
