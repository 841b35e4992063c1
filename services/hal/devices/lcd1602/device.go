// Package lcd1602 exposes an HD44780 character display. Commands run on the
// device's goroutine and are answered once the display has been written; the
// published value mirrors what the display shows.
package lcd1602

import (
	"context"
	"strings"
	"sync"

	"superkit-go/drivers/hd44780"
	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/types"
	"superkit-go/x/timex"
)

const queueLen = 8

type op uint8

const (
	opClear op = iota
	opPrint
	opWrite
)

type cmd struct {
	op    op
	lines []string
	row   int
	col   int
	text  string
	done  chan errcode.Code
}

type Device struct {
	id   string
	p    Params
	res  core.Resources
	a    core.CapAddr
	lcd  *hd44780.Device
	pins []int
	gpio []core.GPIOHandle
	i2c  core.ResourceID // empty for gpio4

	q    chan cmd
	quit chan struct{}
	wg   sync.WaitGroup

	mu     sync.Mutex
	shadow [][]byte
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	info := types.LCDInfo{Transport: d.p.Transport, Cols: d.p.Cols, Rows: d.p.Rows}
	if d.i2c != "" {
		info.Bus, info.Addr = string(d.i2c), d.p.Addr
	}
	return []core.CapabilitySpec{{
		Domain: d.a.Domain,
		Kind:   types.KindLCD,
		Name:   d.a.Name,
		Info:   types.Info{SchemaVersion: 1, Driver: "lcd1602", Detail: info},
	}}
}

func (d *Device) Init(context.Context) error {
	for _, g := range d.gpio {
		if err := g.ConfigureOutput(false); err != nil {
			return errcode.Wrap(errcode.IOError, "lcd1602.init", err)
		}
	}
	if err := d.lcd.Init(); err != nil {
		return errcode.Wrap(errcode.MapDriverErr(err), "lcd1602.init", err)
	}
	d.blank()

	d.q = make(chan cmd, queueLen)
	d.quit = make(chan struct{})
	d.wg.Add(1)
	go d.worker()
	d.emitValue()
	return nil
}

// Close stops the worker, clears the display and releases its lines.
func (d *Device) Close() error {
	if d.quit != nil {
		close(d.quit)
		d.wg.Wait()
		for len(d.q) > 0 {
			c := <-d.q
			c.done <- errcode.Busy
		}
		_ = d.lcd.Clear()
	}
	for _, n := range d.pins {
		d.res.Reg.ReleasePin(d.id, n)
	}
	if d.i2c != "" {
		d.res.Reg.ReleaseI2C(d.id, d.i2c)
	}
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	var c cmd
	switch verb {
	case "clear":
		c.op = opClear
	case "print":
		p, code := core.As[types.LCDPrint](payload)
		if code != "" {
			return core.Rejected(code), nil
		}
		c.op, c.lines = opPrint, append([]string(nil), p.Lines...)
	case "write":
		p, code := core.As[types.LCDWrite](payload)
		if code != "" {
			return core.Rejected(code), nil
		}
		if p.Row < 0 || p.Row >= d.p.Rows || p.Col < 0 || p.Col >= d.p.Cols {
			return core.Rejected(errcode.InvalidPayload), nil
		}
		c.op, c.row, c.col, c.text = opWrite, p.Row, p.Col, p.Text
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
			if err := d.exec(c); err != nil {
				code := errcode.MapDriverErr(err)
				d.res.Pub.Emit(core.Event{Addr: d.a, Err: string(code), TSms: timex.NowMs()})
				c.done <- code
				continue
			}
			d.emitValue()
			c.done <- errcode.OK
		}
	}
}

func (d *Device) exec(c cmd) error {
	switch c.op {
	case opClear:
		if err := d.lcd.Clear(); err != nil {
			return err
		}
		d.blank()
	case opPrint:
		if err := d.lcd.Print(c.lines); err != nil {
			return err
		}
		d.blank()
		for r, s := range c.lines {
			if r < d.p.Rows {
				d.put(r, 0, hd44780.ROMText(s, d.p.Cols))
			}
		}
	case opWrite:
		text := hd44780.ROMText(c.text, d.p.Cols-c.col)
		if err := d.lcd.SetCursor(c.row, c.col); err != nil {
			return err
		}
		if _, err := d.lcd.Write(text); err != nil {
			return err
		}
		d.put(c.row, c.col, text)
	}
	return nil
}

func (d *Device) blank() {
	d.mu.Lock()
	d.shadow = make([][]byte, d.p.Rows)
	for i := range d.shadow {
		d.shadow[i] = []byte(strings.Repeat(" ", d.p.Cols))
	}
	d.mu.Unlock()
}

// put mirrors a write, clipped to the row.
func (d *Device) put(row, col int, s []byte) {
	d.mu.Lock()
	copy(d.shadow[row][col:], s)
	d.mu.Unlock()
}

func (d *Device) emitValue() {
	d.mu.Lock()
	lines := make([]string, len(d.shadow))
	for i, r := range d.shadow {
		lines[i] = strings.TrimRight(string(r), " ")
	}
	d.mu.Unlock()
	d.res.Pub.Emit(core.Event{Addr: d.a, Payload: types.LCDValue{Lines: lines}, TSms: timex.NowMs()})
}
