package core

import (
	"context"
	"time"

	"superkit-go/errcode"
	"superkit-go/types"
)

// ---- Capability & device model ----

// CapAddr is the resolved address of one capability on the bus.
type CapAddr struct {
	Domain string
	Kind   types.Kind
	Name   string
}

type CapabilitySpec struct {
	Domain string // defaults to defaultDomainFor(Kind)
	Kind   types.Kind
	Name   string // defaults to the device ID
	Info   types.Info

	// PollEvery > 0 makes the HAL issue a "read" control at this interval.
	PollEvery time.Duration
}

// EnqueueResult reports whether a control was accepted. Controls are never
// executed synchronously on the HAL goroutine beyond a quick hand-off.
// A non-nil Done defers the reply until the device sends the outcome on it;
// the device must send exactly once, including when it is closed.
type EnqueueResult struct {
	OK    bool
	Error errcode.Code
	Done  <-chan errcode.Code
}

func Accepted() EnqueueResult                        { return EnqueueResult{OK: true} }
func Rejected(c errcode.Code) EnqueueResult          { return EnqueueResult{OK: false, Error: c} }
func Pending(done <-chan errcode.Code) EnqueueResult { return EnqueueResult{OK: true, Done: done} }

type Device interface {
	ID() string
	Capabilities() []CapabilitySpec
	Init(ctx context.Context) error
	// Control must not block; long work goes to the device's own goroutine.
	Control(cap CapAddr, verb string, payload any) (EnqueueResult, error)
	Close() error // release claimed resources and stop goroutines
}

// Builder input
type BuilderInput struct {
	ID, Type string
	Params   any
	Res      Resources
}

type Builder interface {
	Build(ctx context.Context, in BuilderInput) (Device, error)
}

// BuilderFunc adapts a plain function to Builder.
type BuilderFunc func(ctx context.Context, in BuilderInput) (Device, error)

func (f BuilderFunc) Build(ctx context.Context, in BuilderInput) (Device, error) { return f(ctx, in) }
