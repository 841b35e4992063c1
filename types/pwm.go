package types

// PWMInfo describes a software PWM output. Levels run 0..Top.
type PWMInfo struct {
	Pin       int    `json:"pin"`
	FreqHz    uint64 `json:"freq_hz,omitempty"`
	Top       uint16 `json:"top,omitempty"`
	ActiveLow bool   `json:"active_low"`
	Initial   uint16 `json:"initial"`
}

type PWMValue struct {
	Level uint16 `json:"level"`
}

type PWMSet struct {
	Level uint16 `json:"level"`
}

// PWMRamp moves the level to To in Steps equal steps over DurationMs. A
// ramp already running makes the request busy.
type PWMRamp struct {
	To         uint16 `json:"to"`
	DurationMs uint32 `json:"duration_ms"`
	Steps      uint16 `json:"steps"`
	Mode       uint8  `json:"mode"` // 0 linear, the only mode so far
}
