// Package shift_register exposes a chain of 74HC595s. Bit-banging runs on
// the device's own goroutine so controls never block the HAL loop; write and
// clear are answered once the outputs are latched.
package shift_register

import (
	"context"
	"sync"

	"superkit-go/drivers/hc595"
	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/types"
	"superkit-go/x/timex"
)

const queueLen = 16

type cmd struct {
	clear bool
	bytes []byte
	done  chan errcode.Code
}

type Device struct {
	id   string
	p    Params
	pins []core.GPIOHandle
	drv  *hc595.Device
	res  core.Resources
	a    core.CapAddr

	q    chan cmd
	quit chan struct{}
	wg   sync.WaitGroup

	mu   sync.Mutex
	last []byte
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.a.Domain,
		Kind:   types.KindShiftReg,
		Name:   d.a.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "shift_register",
			Detail:        types.ShiftRegInfo{SDI: d.p.SDI, RCLK: d.p.RCLK, SRCLK: d.p.SRCLK, Chain: d.p.Chain},
		},
	}}
}

func (d *Device) Init(context.Context) error {
	for _, g := range d.pins {
		if err := g.ConfigureOutput(false); err != nil {
			return errcode.Wrap(errcode.IOError, "shift_register.init", err)
		}
	}
	d.drv.Configure()
	d.drv.Clear(d.p.Chain)
	d.last = make([]byte, d.p.Chain)

	d.q = make(chan cmd, queueLen)
	d.quit = make(chan struct{})
	d.wg.Add(1)
	go d.worker()
	d.emitValue()
	return nil
}

// Close fails queued writes with busy and zeroes the outputs.
func (d *Device) Close() error {
	if d.quit != nil {
		close(d.quit)
		d.wg.Wait()
		for len(d.q) > 0 {
			c := <-d.q
			c.done <- errcode.Busy
		}
	}
	d.drv.Clear(d.p.Chain)
	for _, n := range []int{d.p.SDI, d.p.RCLK, d.p.SRCLK} {
		d.res.Reg.ReleasePin(d.id, n)
	}
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	var c cmd
	switch verb {
	case "write":
		p, code := core.As[types.ShiftRegWrite](payload)
		if code != "" {
			return core.Rejected(code), nil
		}
		if len(p.Bytes) == 0 || len(p.Bytes) > d.p.Chain {
			return core.Rejected(errcode.InvalidPayload), nil
		}
		c.bytes = append([]byte(nil), p.Bytes...)
	case "clear":
		c.clear = true
	case "read":
		d.emitValue()
		return core.Accepted(), nil
	default:
		return core.Rejected(errcode.Unsupported), nil
	}
	c.done = make(chan errcode.Code, 1)
	select {
	case d.q <- c:
		return core.Pending(c.done), nil
	default:
		return core.Rejected(errcode.Busy), nil
	}
}

func (d *Device) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.quit:
			return
		case c := <-d.q:
			var latched []byte
			if c.clear {
				d.drv.Clear(d.p.Chain)
				latched = make([]byte, d.p.Chain)
			} else {
				d.drv.Write(c.bytes...)
				latched = c.bytes
			}
			d.mu.Lock()
			d.last = latched
			d.mu.Unlock()
			d.emitValue()
			c.done <- errcode.OK
		}
	}
}

func (d *Device) emitValue() {
	d.mu.Lock()
	b := append([]byte(nil), d.last...)
	d.mu.Unlock()
	d.res.Pub.Emit(core.Event{Addr: d.a, Payload: types.ShiftRegValue{Bytes: b}, TSms: timex.NowMs()})
}
