package types

// Plain GPIO parts of the kit: push buttons, single LEDs and on/off
// switches. Levels here are logical; ActiveLow and Invert are applied by
// the HAL.

// ButtonInfo is published retained on .../info for a button.
type ButtonInfo struct {
	Pin  int    `json:"pin"`
	Pull string `json:"pull"`
}

// ButtonValue is the debounced state; the HAL also emits a "pressed" or
// "released" event per edge.
type ButtonValue struct {
	Pressed bool `json:"pressed"`
}

type LEDInfo struct {
	Pin       int  `json:"pin"`
	ActiveLow bool `json:"active_low"` // the kit wires LEDs to 3V3, so most are
}

type LEDValue struct {
	On bool `json:"on"`
}

// LEDSet is the payload of led control/set. Toggle takes no payload.
type LEDSet struct {
	On bool `json:"on"`
}

// A switch is an LED-like output without the LED semantics, e.g. a relay.
type (
	SwitchInfo  struct{ Pin int `json:"pin"` }
	SwitchValue struct{ On bool `json:"on"` }
	SwitchSet   struct{ On bool `json:"on"` }
)
