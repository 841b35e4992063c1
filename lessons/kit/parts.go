package kit

import (
	"context"

	"superkit-go/types"
)

// LED is a gpio_led capability.
type LED struct {
	c   *Client
	cap Cap
}

func (c *Client) LED(name string) LED { return LED{c, IO(types.KindLED, name)} }

func (l LED) Set(ctx context.Context, on bool) error {
	return l.c.Do(ctx, l.cap, "set", types.LEDSet{On: on})
}
func (l LED) On(ctx context.Context) error     { return l.Set(ctx, true) }
func (l LED) Off(ctx context.Context) error    { return l.Set(ctx, false) }
func (l LED) Toggle(ctx context.Context) error { return l.c.Do(ctx, l.cap, "toggle", nil) }

// PWM is a pwm_out capability.
type PWM struct {
	c   *Client
	cap Cap
}

func (c *Client) PWM(name string) PWM { return PWM{c, IO(types.KindPWM, name)} }

func (p PWM) Set(ctx context.Context, level uint16) error {
	return p.c.Do(ctx, p.cap, "set", types.PWMSet{Level: level})
}

func (p PWM) Ramp(ctx context.Context, to uint16, durationMs uint32, steps uint16) error {
	return p.c.Do(ctx, p.cap, "ramp", types.PWMRamp{To: to, DurationMs: durationMs, Steps: steps})
}

// RGB is an rgb_led capability.
type RGB struct {
	c   *Client
	cap Cap
}

func (c *Client) RGB(name string) RGB { return RGB{c, IO(types.KindRGB, name)} }

func (r RGB) Set(ctx context.Context, color uint32) error {
	return r.c.Do(ctx, r.cap, "set", types.RGBSet{Color: color})
}

// Motor is a dc_motor capability.
type Motor struct {
	c   *Client
	cap Cap
}

func (c *Client) Motor(name string) Motor { return Motor{c, IO(types.KindMotor, name)} }

func (m Motor) Set(ctx context.Context, dir types.MotorDirection) error {
	return m.c.Do(ctx, m.cap, "set", types.MotorSet{Direction: dir})
}

// ShiftReg is a shift_register capability.
type ShiftReg struct {
	c   *Client
	cap Cap
}

func (c *Client) ShiftReg(name string) ShiftReg {
	return ShiftReg{c, IO(types.KindShiftReg, name)}
}

// Write shifts bs in order and latches once.
func (s ShiftReg) Write(ctx context.Context, bs ...byte) error {
	return s.c.Do(ctx, s.cap, "write", types.ShiftRegWrite{Bytes: bs})
}

func (s ShiftReg) Clear(ctx context.Context) error { return s.c.Do(ctx, s.cap, "clear", nil) }

// LCD is an lcd1602 capability.
type LCD struct {
	c   *Client
	cap Cap
}

func (c *Client) LCD(name string) LCD { return LCD{c, IO(types.KindLCD, name)} }

func (l LCD) Print(ctx context.Context, lines ...string) error {
	return l.c.Do(ctx, l.cap, "print", types.LCDPrint{Lines: lines})
}

func (l LCD) Clear(ctx context.Context) error { return l.c.Do(ctx, l.cap, "clear", nil) }

// Counter is a pulse_counter or rotary_encoder capability; both answer
// read and reset.
type Counter struct {
	c   *Client
	cap Cap
}

func (c *Client) Counter(kind types.Kind, name string) Counter {
	return Counter{c, IO(kind, name)}
}

func (n Counter) Cap() Cap                        { return n.cap }
func (n Counter) Read(ctx context.Context) error  { return n.c.Do(ctx, n.cap, "read", nil) }
func (n Counter) Reset(ctx context.Context) error { return n.c.Do(ctx, n.cap, "reset", nil) }
