package types

// ------------------------
// Capability addressing & kinds
// ------------------------

type Kind string

const (
	KindLED      Kind = "led"
	KindSwitch   Kind = "switch"
	KindButton   Kind = "button"
	KindPWM      Kind = "pwm"
	KindRGB      Kind = "rgb"
	KindMotor    Kind = "motor"
	KindEncoder  Kind = "encoder"
	KindCounter  Kind = "counter"
	KindShiftReg Kind = "shiftreg"
	KindLCD      Kind = "lcd"
)

// CapabilityAddress identifies a public capability on the bus.
type CapabilityAddress struct {
	Domain string `json:"domain"` // "io" for everything on the kit breadboard
	Kind   Kind   `json:"kind"`
	Name   string `json:"name"`
}
