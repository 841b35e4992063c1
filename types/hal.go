package types

// HALState is published retained on hal/state.
type HALState struct {
	Level  string `json:"level"` // idle until the first config, then ready; stopped on exit
	Status string `json:"status,omitempty"`
	TSms   int64  `json:"ts_ms"`
}

// Link is the health reported on a capability's .../status topic.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

type CapabilityStatus struct {
	Link  Link   `json:"link"`
	TSms  int64  `json:"ts_ms"`
	Error string `json:"error,omitempty"` // an errcode when degraded
}

// HALConfig is what a lesson publishes on config/hal: the parts it has
// wired on the breadboard.
type HALConfig struct {
	Devices []HALDevice `json:"devices"`
}

// HALDevice names one part. ID doubles as the capability name unless the
// builder says otherwise; Params is the builder's own struct.
type HALDevice struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Params any    `json:"params"`
}

// Replies to config and control requests.
type (
	OKReply struct {
		OK bool `json:"ok"`
	}
	ErrorReply struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
)

// Info is published retained on .../info when a capability registers.
type Info struct {
	SchemaVersion int    `json:"schema_version"`
	Driver        string `json:"driver"`
	Detail        any    `json:"detail,omitempty"` // the part's *Info struct
}
