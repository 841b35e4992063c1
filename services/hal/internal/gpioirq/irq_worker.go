// Package gpioirq turns raw pin interrupts into debounced, direction-tagged
// edge events, one stream per registered input.
package gpioirq

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"superkit-go/services/hal/internal/halcore"
	"superkit-go/services/metrics"
)

// GPIOEvent is delivered from the worker to a device.
type GPIOEvent struct {
	DevID string
	Pin   int
	Level bool // logical level, after inversion
	Edge  halcore.Edge
	TS    time.Time
}

// ErrAlreadyRegistered is returned when the same device registers a pin twice.
var ErrAlreadyRegistered = errors.New("gpioirq: input already registered")

type key struct {
	devID string
	pin   int
}

type Worker struct {
	// Written by IRQ handlers; must never block them.
	isrQ    chan key
	stopped chan struct{}

	mu     sync.RWMutex
	inputs map[key]*watch

	drops atomic.Uint32
}

type watch struct {
	key       key
	pin       halcore.IRQPin
	edge      halcore.Edge
	debounce  time.Duration
	invert    bool
	lastLevel bool
	lastEvent time.Time
	out       chan GPIOEvent
	closeOnce sync.Once

	tmu    sync.Mutex
	closed bool
	settle *time.Timer
}

// Stream is the per-registration event channel handed to a device.
type Stream struct {
	w  *Worker
	wh *watch
}

func (s *Stream) Events() <-chan GPIOEvent { return s.wh.out }

// Close stops interrupts for the input and closes the event channel.
func (s *Stream) Close() { s.w.unregister(s.wh.key) }

func New(isrBuf int) *Worker {
	if isrBuf <= 0 {
		isrBuf = 64
	}
	return &Worker{
		isrQ:    make(chan key, isrBuf),
		stopped: make(chan struct{}),
		inputs:  map[key]*watch{},
	}
}

// Start runs the worker until ctx ends. All streams are closed on exit.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.stopped)
		for {
			select {
			case <-ctx.Done():
				w.closeAll()
				return
			case k := <-w.isrQ:
				w.handleISR(k)
			}
		}
	}()
}

// Done is closed once the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} { return w.stopped }

// RegisterInput arms interrupts on pin and returns the stream of debounced
// edges. bufLen bounds the stream; a slow consumer loses events.
func (w *Worker) RegisterInput(devID string, pin halcore.IRQPin, edge halcore.Edge, debounce time.Duration, invert bool, bufLen int) (*Stream, error) {
	if bufLen <= 0 {
		bufLen = 8
	}
	k := key{devID: devID, pin: pin.Number()}

	w.mu.Lock()
	if _, dup := w.inputs[k]; dup {
		w.mu.Unlock()
		return nil, ErrAlreadyRegistered
	}
	// Initial logical snapshot so the first edge compares like-for-like.
	init := pin.Get()
	if invert {
		init = !init
	}
	wh := &watch{
		key:       k,
		pin:       pin,
		edge:      edge,
		debounce:  debounce,
		invert:    invert,
		lastLevel: init,
		out:       make(chan GPIOEvent, bufLen),
	}
	w.inputs[k] = wh
	w.mu.Unlock()

	if edge != halcore.EdgeNone {
		handler := func() { w.enqueue(k) }
		if err := pin.SetIRQ(edge, handler); err != nil {
			w.mu.Lock()
			delete(w.inputs, k)
			w.mu.Unlock()
			return nil, err
		}
	}
	return &Stream{w: w, wh: wh}, nil
}

// enqueue never blocks; it runs in interrupt context.
func (w *Worker) enqueue(k key) {
	select {
	case w.isrQ <- k:
	default:
		w.drops.Add(1)
		metrics.GPIOISRDropped()
	}
}

func (w *Worker) unregister(k key) {
	w.mu.Lock()
	wh, ok := w.inputs[k]
	delete(w.inputs, k)
	w.mu.Unlock()
	if ok {
		w.release(wh)
	}
}

func (w *Worker) release(wh *watch) {
	wh.closeOnce.Do(func() {
		wh.tmu.Lock()
		wh.closed = true
		if wh.settle != nil {
			wh.settle.Stop()
		}
		wh.tmu.Unlock()
		_ = wh.pin.ClearIRQ()
		close(wh.out)
	})
}

func (w *Worker) closeAll() {
	w.mu.Lock()
	all := w.inputs
	w.inputs = map[key]*watch{}
	w.mu.Unlock()
	for _, wh := range all {
		w.release(wh)
	}
}

func (w *Worker) handleISR(k key) {
	// Hold the read lock while sending so unregister cannot close out under us.
	w.mu.RLock()
	defer w.mu.RUnlock()
	wh := w.inputs[k]
	if wh == nil {
		return
	}
	raw := wh.pin.Get()
	if wh.invert {
		raw = !raw
	}
	now := time.Now()

	if !wh.lastEvent.IsZero() && now.Sub(wh.lastEvent) < wh.debounce {
		// A level change inside the window would otherwise be lost until the
		// next interrupt; sample again once it closes.
		if wh.edge == halcore.EdgeBoth {
			w.settleLater(wh, wh.lastEvent.Add(wh.debounce).Sub(now))
		}
		return
	}

	var e halcore.Edge
	switch wh.edge {
	case halcore.EdgeBoth:
		switch {
		case !wh.lastLevel && raw:
			e = halcore.EdgeRising
		case wh.lastLevel && !raw:
			e = halcore.EdgeFalling
		}
	case halcore.EdgeRising, halcore.EdgeFalling:
		// Only the configured edge fires the handler; trust it for direction.
		e = wh.edge
	}

	if e == halcore.EdgeNone {
		return
	}
	select {
	case wh.out <- GPIOEvent{DevID: k.devID, Pin: k.pin, Level: raw, Edge: e, TS: now}:
		metrics.GPIOEdge(k.pin, e.String())
	default:
	}
	wh.lastLevel = raw
	wh.lastEvent = now
}

// settleLater re-queues wh after d unless a re-sample is already pending.
func (w *Worker) settleLater(wh *watch, d time.Duration) {
	wh.tmu.Lock()
	defer wh.tmu.Unlock()
	if wh.closed || wh.settle != nil {
		return
	}
	wh.settle = time.AfterFunc(d, func() {
		wh.tmu.Lock()
		wh.settle = nil
		closed := wh.closed
		wh.tmu.Unlock()
		if !closed {
			w.enqueue(wh.key)
		}
	})
}

func (w *Worker) ISRDrops() uint32 { return w.drops.Load() }
