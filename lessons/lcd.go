package lessons

import (
	"context"

	"superkit-go/services/hal/devices/lcd1602"
	"superkit-go/types"
	"superkit-go/x/strx"
)

func init() {
	Register(Entry{Name: "13_LCD1602", Title: "LCD1602", New: func() Lesson {
		return &lcd{p: LCDParams{
			Transport: "gpio4",
			RS:        27,
			E:         22,
			D4:        25,
			D5:        24,
			D6:        23,
			D7:        18,
			DelayMs:   2000,
			Loops:     3,
			Messages:  defaultLCDMessages,
		}}
	}})
}

var defaultLCDMessages = []string{
	" LCD 1602 Test \n123456789ABCDEF",
	"   SUNFOUNDER \nHello World ! :)",
	"Welcome to --->\n  sunfounder.com",
	"May the Gopher\n... be with you!",
	"Gophers say \"Hi\"\n        go.dev",
}

type LCDParams struct {
	Transport string `koanf:"transport"` // "gpio4" or "i2c"
	RS        int    `koanf:"rs"`
	E         int    `koanf:"e"`
	D4        int    `koanf:"d4"`
	D5        int    `koanf:"d5"`
	D6        int    `koanf:"d6"`
	D7        int    `koanf:"d7"`
	I2CBus    string `koanf:"i2c_bus"`
	Addr      uint16 `koanf:"addr"`

	DelayMs  uint32   `koanf:"delay_ms"`
	Loops    int      `koanf:"loops"`
	Messages []string `koanf:"messages"` // rows split on '\n'
}

// lcd shows each message in turn and finishes after Loops passes.
type lcd struct{ p LCDParams }

func (l *lcd) Params() any { return &l.p }

func (l *lcd) Devices() []types.HALDevice {
	return []types.HALDevice{{ID: "lcd", Type: "lcd1602", Params: lcd1602.Params{
		Transport: l.p.Transport,
		RS:        l.p.RS,
		E:         l.p.E,
		D4:        l.p.D4,
		D5:        l.p.D5,
		D6:        l.p.D6,
		D7:        l.p.D7,
		I2CBus:    l.p.I2CBus,
		Addr:      l.p.Addr,
	}}}
}

func (l *lcd) Run(ctx context.Context, env *Env) error {
	d := env.Kit.LCD("lcd")
	for i := 0; i < l.p.Loops; i++ {
		for _, msg := range l.p.Messages {
			lines := strx.Lines(msg, 2)
			for _, s := range lines {
				env.Say("%s", s)
			}
			if err := d.Print(ctx, lines...); err != nil {
				return err
			}
			if !env.Sleep(ctx, l.p.DelayMs) {
				return nil
			}
		}
		env.Say("")
	}
	return nil
}

func (l *lcd) Cleanup(ctx context.Context, env *Env) error { return env.Kit.LCD("lcd").Clear(ctx) }
