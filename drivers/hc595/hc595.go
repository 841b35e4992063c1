// Package hc595 drives one or more cascaded 74HC595 shift registers over
// three GPIO lines (serial data, shift clock, latch clock).
//
//	d := hc595.New(sdi, rclk, srclk)
//	d.Configure()
//	d.Write(0x3f)       // shift one byte MSB first, then latch
//	d.Write(lo, hi)     // two registers: lo ends up in the far one
package hc595

// Pin is the output side of a GPIO line.
type Pin interface {
	Set(level bool)
}

// Device is not safe for concurrent use.
//
// Clocks are strobed back to back: the 74HC595 needs about 20ns of high
// time, less than a single GPIO write takes.
type Device struct {
	sdi, rclk, srclk Pin
}

func New(sdi, rclk, srclk Pin) *Device {
	return &Device{sdi: sdi, rclk: rclk, srclk: srclk}
}

// Configure drives all three lines low.
func (d *Device) Configure() {
	d.sdi.Set(false)
	d.rclk.Set(false)
	d.srclk.Set(false)
}

// ShiftIn clocks b into the register, most significant bit first.
// Outputs do not change until Latch.
func (d *Device) ShiftIn(b byte) {
	for mask := byte(0x80); mask != 0; mask >>= 1 {
		d.sdi.Set(b&mask != 0)
		d.pulse(d.srclk)
	}
}

// Latch copies the shift register to the outputs.
func (d *Device) Latch() { d.pulse(d.rclk) }

// Write shifts bs in order and latches once.
func (d *Device) Write(bs ...byte) {
	for _, b := range bs {
		d.ShiftIn(b)
	}
	d.Latch()
}

// Clear zeroes n cascaded registers and leaves the lines low.
func (d *Device) Clear(n int) {
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		d.ShiftIn(0)
	}
	d.Latch()
	d.Configure()
}

func (d *Device) pulse(p Pin) {
	p.Set(true)
	p.Set(false)
}
