package lcd1602

import (
	"context"

	"superkit-go/drivers/hd44780"
	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/types"
	"superkit-go/x/strx"
)

func init() { core.RegisterBuilder("lcd1602", builder{}) }

type Params struct {
	Transport string // "gpio4" (default) or "i2c"

	// gpio4
	RS, E          int
	D4, D5, D6, D7 int

	// i2c (PCF8574 backpack)
	I2CBus string // default "i2c1"
	Addr   uint16 // default 0x27

	Cols, Rows int // default 16x2
	Domain     string
	Name       string
}

type builder struct{}

func (builder) Build(_ context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := core.Params[Params](in.Params)
	if err != nil {
		return nil, err
	}
	p.Transport = strx.Coalesce(p.Transport, "gpio4")
	if p.Cols == 0 {
		p.Cols = 16
	}
	if p.Rows == 0 {
		p.Rows = 2
	}
	if p.Cols < 0 || p.Cols > 40 || p.Rows < 0 || p.Rows > 4 {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "lcd1602", Msg: "geometry"}
	}

	d := &Device{
		id:  in.ID,
		p:   p,
		res: in.Res,
		a:   core.CapAddr{Domain: strx.Coalesce(p.Domain, "io"), Kind: types.KindLCD, Name: strx.Coalesce(p.Name, in.ID)},
	}
	var bus hd44780.Bus
	switch p.Transport {
	case "gpio4":
		pins := []int{p.RS, p.E, p.D4, p.D5, p.D6, p.D7}
		h := make([]core.GPIOHandle, 0, len(pins))
		for i, n := range pins {
			ph, err := in.Res.Reg.ClaimPin(in.ID, n, core.FuncGPIOOut)
			if err != nil {
				for _, m := range pins[:i] {
					in.Res.Reg.ReleasePin(in.ID, m)
				}
				return nil, err
			}
			h = append(h, ph.AsGPIO())
		}
		d.pins, d.gpio = pins, h
		bus = hd44780.NewGPIOBus(h[0], h[1], h[2], h[3], h[4], h[5])
	case "i2c":
		p.I2CBus = strx.Coalesce(p.I2CBus, "i2c1")
		if p.Addr == 0 {
			p.Addr = hd44780.DefaultI2CAddress
		}
		i2c, err := in.Res.Reg.ClaimI2C(in.ID, core.ResourceID(p.I2CBus))
		if err != nil {
			return nil, err
		}
		d.p = p
		d.i2c = core.ResourceID(p.I2CBus)
		bus = hd44780.NewI2CBus(i2c, p.Addr)
	default:
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "lcd1602", Msg: "transport " + p.Transport}
	}
	d.lcd = hd44780.New(bus, hd44780.Config{Cols: p.Cols, Rows: p.Rows})
	return d, nil
}
