// Package devtest is a harness for device tests: simulated pins behind the
// real provider, and an emitter that records what devices publish.
package devtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
	"superkit-go/services/hal/internal/platform"
	"superkit-go/services/hal/internal/provider"
)

type Harness struct {
	Sim *platform.Sim
	Reg *provider.Registry
	Pub *Recorder
	Res core.Resources
}

// New starts a provider over simulated pins; everything stops at cleanup.
func New(t *testing.T) *Harness {
	t.Helper()
	sim := platform.NewSim(platform.RaspberryPi40Pin)
	reg := provider.New(sim.Pins, sim.I2C, provider.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	reg.Start(ctx)
	t.Cleanup(func() {
		reg.Close()
		cancel()
	})
	pub := NewRecorder()
	return &Harness{Sim: sim, Reg: reg, Pub: pub, Res: core.Resources{Reg: reg, Pub: pub}}
}

// Build constructs and initialises a device of a registered type. The device
// is closed at cleanup.
func (h *Harness) Build(t *testing.T, typ, id string, params any) core.Device {
	t.Helper()
	dev, err := h.TryBuild(typ, id, params)
	require.NoError(t, err)
	require.NoError(t, dev.Init(context.Background()))
	t.Cleanup(func() { _ = dev.Close() })
	return dev
}

// TryBuild only runs the builder.
func (h *Harness) TryBuild(typ, id string, params any) (core.Device, error) {
	b, ok := core.LookupBuilder(typ)
	if !ok {
		return nil, &missingBuilder{typ}
	}
	return b.Build(context.Background(), core.BuilderInput{ID: id, Type: typ, Params: params, Res: h.Res})
}

type missingBuilder struct{ typ string }

func (e *missingBuilder) Error() string { return "no builder for " + e.typ }

// Pin returns the simulated pin n.
func (h *Harness) Pin(t *testing.T, n int) *platform.SimPin {
	t.Helper()
	p, ok := h.Sim.Pins.Pin(n)
	require.True(t, ok, "gpio%d", n)
	return p
}

// Control issues a control and requires it to be accepted. A deferred
// control must also complete with ok.
func Control(t *testing.T, d core.Device, verb string, payload any) {
	t.Helper()
	caps := d.Capabilities()
	require.NotEmpty(t, caps)
	res, err := d.Control(Addr(d.ID(), caps[0]), verb, payload)
	require.NoError(t, err)
	require.True(t, res.OK, "control %s rejected: %s", verb, res.Error)
	if res.Done != nil {
		require.Equal(t, errcode.OK, Outcome(t, res), "control %s", verb)
	}
}

// Outcome waits for a deferred control to finish.
func Outcome(t *testing.T, res core.EnqueueResult) errcode.Code {
	t.Helper()
	require.NotNil(t, res.Done)
	select {
	case c := <-res.Done:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("deferred control never completed")
		return ""
	}
}

// Addr resolves a capability address the way the HAL does.
func Addr(devID string, cs core.CapabilitySpec) core.CapAddr {
	a := core.CapAddr{Domain: cs.Domain, Kind: cs.Kind, Name: cs.Name}
	if a.Domain == "" {
		a.Domain = "io"
	}
	if a.Name == "" {
		a.Name = devID
	}
	return a
}

// Recorder is a core.EventEmitter that keeps every event.
type Recorder struct {
	mu     sync.Mutex
	events []core.Event
	notify chan struct{}
}

func NewRecorder() *Recorder { return &Recorder{notify: make(chan struct{}, 1)} }

func (r *Recorder) Emit(ev core.Event) bool {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return true
}

func (r *Recorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event(nil), r.events...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Last returns the most recent value payload (non-event, non-error).
func (r *Recorder) Last() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		ev := r.events[i]
		if ev.Err == "" && !ev.IsEvent && ev.EventTag == "" {
			return ev.Payload
		}
	}
	return nil
}

// Mark returns a position for WaitAfter: events recorded so far are skipped.
func (r *Recorder) Mark() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Wait blocks until an event satisfying pred has been recorded.
func (r *Recorder) Wait(t *testing.T, pred func(core.Event) bool) core.Event {
	t.Helper()
	return r.WaitAfter(t, 0, pred)
}

// WaitAfter is Wait ignoring the events recorded before mark.
func (r *Recorder) WaitAfter(t *testing.T, mark int, pred func(core.Event) bool) core.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	seen := mark
	for {
		r.mu.Lock()
		evs := r.events[min(seen, len(r.events)):]
		seen = len(r.events)
		r.mu.Unlock()
		for _, ev := range evs {
			if pred(ev) {
				return ev
			}
		}
		select {
		case <-r.notify:
		case <-time.After(5 * time.Millisecond):
		case <-deadline:
			t.Fatal("timeout waiting for device event")
			return core.Event{}
		}
	}
}

// Tagged matches events published under .../event/<tag>.
func Tagged(tag string) func(core.Event) bool {
	return func(ev core.Event) bool { return ev.EventTag == tag }
}

// Value matches value events equal to v; v must be comparable.
func Value(v any) func(core.Event) bool {
	return func(ev core.Event) bool {
		return ev.Err == "" && ev.EventTag == "" && !ev.IsEvent && ev.Payload == v
	}
}
