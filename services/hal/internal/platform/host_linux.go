//go:build linux

package platform

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/distro"
	"tinygo.org/x/drivers"

	"superkit-go/services/hal/internal/halcore"
)

// edgePoll bounds how long an IRQ goroutine blocks before checking for stop.
const edgePoll = 100 * time.Millisecond

// Host bundles periph.io-backed factories for a Raspberry Pi.
type Host struct {
	Board Board
	Pins  *HostPinFactory
	I2C   *HostI2CFactory
}

// OpenHost initialises periph.io drivers.
func OpenHost(b Board) (*Host, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return &Host{
		Board: b,
		Pins:  &HostPinFactory{board: b, pins: map[int]*hwPin{}},
		I2C:   &HostI2CFactory{board: b, buses: map[string]i2c.BusCloser{}},
	}, nil
}

// Close releases opened buses and halts edge watchers.
func (h *Host) Close() error {
	h.Pins.close()
	return h.I2C.close()
}

// ----------------------------- GPIO ------------------------------------------

type hwPin struct {
	n  int
	io gpio.PinIO

	mu   sync.Mutex
	pull halcore.Pull
	stop chan struct{}
	done chan struct{}
}

func toPull(p halcore.Pull) gpio.Pull {
	switch p {
	case halcore.PullUp:
		return gpio.PullUp
	case halcore.PullDown:
		return gpio.PullDown
	default:
		return gpio.Float
	}
}

func toEdge(e halcore.Edge) gpio.Edge {
	switch e {
	case halcore.EdgeRising:
		return gpio.RisingEdge
	case halcore.EdgeFalling:
		return gpio.FallingEdge
	case halcore.EdgeBoth:
		return gpio.BothEdges
	default:
		return gpio.NoEdge
	}
}

func (p *hwPin) ConfigureInput(pull halcore.Pull) error {
	p.mu.Lock()
	p.pull = pull
	p.mu.Unlock()
	return p.io.In(toPull(pull), gpio.NoEdge)
}

func (p *hwPin) ConfigureOutput(initial bool) error { return p.io.Out(gpio.Level(initial)) }

func (p *hwPin) Set(level bool) { _ = p.io.Out(gpio.Level(level)) }
func (p *hwPin) Get() bool      { return bool(p.io.Read()) }
func (p *hwPin) Toggle()        { p.Set(!p.Get()) }
func (p *hwPin) Number() int    { return p.n }

// SetIRQ re-arms the pin as an input with edge detection and calls handler
// from a watcher goroutine for every edge the kernel reports.
func (p *hwPin) SetIRQ(edge halcore.Edge, handler func()) error {
	p.stopWatch()
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.io.In(toPull(p.pull), toEdge(edge)); err != nil {
		return fmt.Errorf("gpio%d edge %s: %w", p.n, edge, err)
	}
	if edge == halcore.EdgeNone {
		return nil
	}
	stop, done := make(chan struct{}), make(chan struct{})
	p.stop, p.done = stop, done
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if p.io.WaitForEdge(edgePoll) {
				handler()
			}
		}
	}()
	return nil
}

func (p *hwPin) ClearIRQ() error {
	p.stopWatch()
	p.mu.Lock()
	pull := p.pull
	p.mu.Unlock()
	return p.io.In(toPull(pull), gpio.NoEdge)
}

func (p *hwPin) stopWatch() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}

// HostPinFactory maps BCM numbers to periph.io pins ("GPIO17").
type HostPinFactory struct {
	board Board
	mu    sync.Mutex
	pins  map[int]*hwPin
}

func (f *HostPinFactory) ByNumber(n int) (halcore.GPIOPin, bool) {
	if !f.board.ValidPin(n) {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pins[n]; ok {
		return p, true
	}
	io := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
	if io == nil {
		return nil, false
	}
	p := &hwPin{n: n, io: io}
	f.pins[n] = p
	return p, true
}

func (f *HostPinFactory) close() {
	f.mu.Lock()
	pins := make([]*hwPin, 0, len(f.pins))
	for _, p := range f.pins {
		pins = append(pins, p)
	}
	f.mu.Unlock()
	for _, p := range pins {
		p.stopWatch()
		_ = p.io.Halt()
	}
}

// ----------------------------- I²C -------------------------------------------

// HostI2CFactory opens /dev/i2c-N lazily. periph's i2c.Bus already has the
// drivers.I2C Tx signature.
type HostI2CFactory struct {
	board Board
	mu    sync.Mutex
	buses map[string]i2c.BusCloser
}

var _ drivers.I2C = (i2c.Bus)(nil)

func (f *HostI2CFactory) ByID(id string) (drivers.I2C, bool) {
	if !f.board.HasI2C(id) {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.buses[id]; ok {
		return b, true
	}
	b, err := i2creg.Open(strings.TrimPrefix(id, "i2c"))
	if err != nil {
		return nil, false
	}
	f.buses[id] = b
	return b, true
}

func (f *HostI2CFactory) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var first error
	for id, b := range f.buses {
		if err := b.Close(); err != nil && first == nil {
			first = fmt.Errorf("close %s: %w", id, err)
		}
		delete(f.buses, id)
	}
	return first
}

func hostModel() string { return strings.TrimSpace(distro.DTModel()) }
