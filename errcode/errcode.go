// Package errcode defines the short error identifiers carried in HAL replies
// and the wrapper that attaches them to Go errors.
package errcode

import (
	"errors"
	"strings"
)

// Code is the wire form of an error. It is itself an error so a decoded
// reply can be returned and matched with errors.Is.
type Code string

func (c Code) Error() string { return string(c) }

// Request-level codes.
const (
	OK                Code = "ok"
	Error             Code = "error"
	Busy              Code = "busy"
	Unsupported       Code = "unsupported"
	InvalidParams     Code = "invalid_params"
	InvalidPayload    Code = "invalid_payload"
	InvalidTopic      Code = "invalid_topic"
	UnknownCapability Code = "unknown_capability"
	HALNotReady       Code = "hal_not_ready"
)

// Resource and hardware codes.
const (
	UnknownBus Code = "unknown_bus"
	BusInUse   Code = "bus_in_use"
	UnknownPin Code = "unknown_pin"
	PinInUse   Code = "pin_in_use"
	Timeout    Code = "timeout"
	IOError    Code = "io_error"
)

// E is an error with a Code, the failing operation and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	parts := make([]string, 0, 4)
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	parts = append(parts, string(e.C))
	if e.Msg != "" {
		parts = append(parts, e.Msg)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *E) Unwrap() error { return e.Err }

func (e *E) Code() Code { return e.C }

// Is lets errors.Is(err, errcode.Busy) match an *E carrying Busy.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap attaches code and op to err. A nil err yields nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}

// Of returns the first Code found in err's chain: OK for nil, Error when
// nothing in the chain carries one.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var e *E
	if errors.As(err, &e) {
		return e.C
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}

// MapDriverErr keeps a code already in the chain and reports any other
// hardware failure as io_error.
func MapDriverErr(err error) Code {
	switch c := Of(err); c {
	case Error:
		return IOError
	default:
		return c
	}
}
