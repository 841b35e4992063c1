package types

// ------------------------
// RGB LED (three PWM channels)
// ------------------------

type RGBInfo struct {
	Pins      [3]int `json:"pins"` // red, green, blue
	FreqHz    uint64 `json:"freq_hz"`
	ActiveLow bool   `json:"active_low"`
}

type RGBValue struct {
	Color uint32 `json:"color"` // 0xRRGGBB
}

type RGBSet struct {
	Color uint32 `json:"color"`
}

// ------------------------
// DC motor behind an L293D half bridge
// ------------------------

type MotorDirection string

const (
	MotorStop             MotorDirection = "stop"
	MotorClockwise        MotorDirection = "cw"
	MotorCounterClockwise MotorDirection = "ccw"
)

type MotorInfo struct {
	PinA      int `json:"pin_a"`
	PinB      int `json:"pin_b"`
	PinEnable int `json:"pin_enable"`
}

type MotorValue struct {
	Direction MotorDirection `json:"direction"`
}

type MotorSet struct {
	Direction MotorDirection `json:"direction"`
}

// ------------------------
// Rotary encoder
// ------------------------

type EncoderInfo struct {
	CLK    int    `json:"clk"`
	DT     int    `json:"dt"`
	SW     int    `json:"sw"`
	PollMs uint32 `json:"poll_ms"`
}

type EncoderValue struct {
	Count int32 `json:"count"`
}

// EncoderStep is published on .../event/rotated for every detent.
type EncoderStep struct {
	Delta int8  `json:"delta"` // +1 clockwise, -1 counter-clockwise
	Count int32 `json:"count"`
}

// ------------------------
// Pulse counter (e.g. 555 timer output)
// ------------------------

type CounterInfo struct {
	Pin  int    `json:"pin"`
	Edge string `json:"edge"`
}

type CounterValue struct {
	Count uint64 `json:"count"`
}

// ------------------------
// 74HC595 shift register chain
// ------------------------

type ShiftRegInfo struct {
	SDI   int `json:"sdi"`
	RCLK  int `json:"rclk"`
	SRCLK int `json:"srclk"`
	Chain int `json:"chain"` // number of cascaded registers
}

type ShiftRegValue struct {
	Bytes []byte `json:"bytes"` // last latched bytes, in shift order
}

// ShiftRegWrite shifts Bytes in order (first byte ends up furthest down the
// chain) and latches once.
type ShiftRegWrite struct {
	Bytes []byte `json:"bytes"`
}

// ------------------------
// Character LCD (HD44780, 16x2)
// ------------------------

type LCDInfo struct {
	Transport string `json:"transport"` // "gpio4" or "i2c"
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
	Bus       string `json:"bus,omitempty"`
	Addr      uint16 `json:"addr,omitempty"`
}

type LCDValue struct {
	Lines []string `json:"lines"`
}

// LCDPrint clears the display and writes one string per row.
type LCDPrint struct {
	Lines []string `json:"lines"`
}

// LCDWrite writes Text at (Row, Col) without clearing.
type LCDWrite struct {
	Row  int    `json:"row"`
	Col  int    `json:"col"`
	Text string `json:"text"`
}
