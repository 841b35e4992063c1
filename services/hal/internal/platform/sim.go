package platform

import (
	"sort"
	"sync"
	"time"

	"tinygo.org/x/drivers"

	"superkit-go/services/hal/internal/halcore"
)

// historyCap bounds recorded transitions per pin; PWM at 2 kHz would
// otherwise grow without limit.
const historyCap = 4096

// ----------------------------- GPIO (sim) ------------------------------------

// Transition is one recorded level change.
type Transition struct {
	At    time.Time
	Level bool
}

// PinState is a snapshot of a simulated pin.
type PinState struct {
	Pin   int    `json:"pin"`
	Mode  string `json:"mode"` // "unset", "in", "out"
	Pull  string `json:"pull"`
	Level bool   `json:"level"`
}

// SimPin implements halcore.IRQPin in memory. Outputs are driven by Set;
// inputs by Drive, which stands in for the outside world (a button, a 555).
type SimPin struct {
	mu      sync.Mutex
	number  int
	mode    string
	pull    halcore.Pull
	level   bool
	irqEdge halcore.Edge
	irqFunc func()

	hist  []Transition
	head  int
	count int
}

func (p *SimPin) ConfigureInput(pull halcore.Pull) error {
	p.mu.Lock()
	p.mode = "in"
	p.pull = pull
	// An undriven input settles at its pull level.
	switch pull {
	case halcore.PullUp:
		p.level = true
	case halcore.PullDown:
		p.level = false
	}
	p.mu.Unlock()
	return nil
}

func (p *SimPin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.mode = "out"
	p.mu.Unlock()
	p.write(initial)
	return nil
}

func (p *SimPin) Set(level bool) { p.write(level) }

// Drive changes the level as an external signal would, firing any IRQ.
func (p *SimPin) Drive(level bool) { p.write(level) }

// Pulse drives one high/low cycle with the given half period.
func (p *SimPin) Pulse(half time.Duration) {
	p.write(true)
	time.Sleep(half)
	p.write(false)
	time.Sleep(half)
}

func (p *SimPin) write(level bool) {
	p.mu.Lock()
	old := p.level
	p.level = level
	if old == level {
		p.mu.Unlock()
		return
	}
	p.record(level)
	irq := p.irqFunc
	want := irqWanted(p.irqEdge, edgeFrom(old, level))
	p.mu.Unlock()
	if want && irq != nil {
		irq() // ISR-style callback used by gpioirq.Worker
	}
}

// caller holds lock
func (p *SimPin) record(level bool) {
	if p.hist == nil {
		p.hist = make([]Transition, historyCap)
	}
	p.hist[p.head] = Transition{At: time.Now(), Level: level}
	p.head = (p.head + 1) % historyCap
	if p.count < historyCap {
		p.count++
	}
}

func (p *SimPin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *SimPin) Toggle() { p.write(!p.Get()) }

func (p *SimPin) Number() int { return p.number }

func (p *SimPin) SetIRQ(edge halcore.Edge, handler func()) error {
	p.mu.Lock()
	p.irqEdge = edge
	p.irqFunc = handler
	p.mu.Unlock()
	return nil
}

func (p *SimPin) ClearIRQ() error {
	p.mu.Lock()
	p.irqEdge = halcore.EdgeNone
	p.irqFunc = nil
	p.mu.Unlock()
	return nil
}

// History returns recorded transitions, oldest first.
func (p *SimPin) History() []Transition {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Transition, 0, p.count)
	start := (p.head - p.count + historyCap) % historyCap
	for i := 0; i < p.count; i++ {
		out = append(out, p.hist[(start+i)%historyCap])
	}
	return out
}

// Levels returns the recorded levels only, oldest first.
func (p *SimPin) Levels() []bool {
	h := p.History()
	out := make([]bool, len(h))
	for i, t := range h {
		out[i] = t.Level
	}
	return out
}

func (p *SimPin) ResetHistory() {
	p.mu.Lock()
	p.head, p.count = 0, 0
	p.mu.Unlock()
}

func (p *SimPin) State() PinState {
	p.mu.Lock()
	defer p.mu.Unlock()
	mode := p.mode
	if mode == "" {
		mode = "unset"
	}
	return PinState{Pin: p.number, Mode: mode, Pull: p.pull.String(), Level: p.level}
}

func edgeFrom(old, new bool) halcore.Edge {
	switch {
	case !old && new:
		return halcore.EdgeRising
	case old && !new:
		return halcore.EdgeFalling
	default:
		return halcore.EdgeNone
	}
}

func irqWanted(cfg, seen halcore.Edge) bool {
	switch cfg {
	case halcore.EdgeBoth:
		return seen == halcore.EdgeRising || seen == halcore.EdgeFalling
	case halcore.EdgeNone:
		return false
	default:
		return cfg == seen
	}
}

// SimPinFactory returns stable *SimPin instances for the board's pins.
type SimPinFactory struct {
	board Board
	mu    sync.Mutex
	pins  map[int]*SimPin
}

func NewSimPinFactory(b Board) *SimPinFactory {
	return &SimPinFactory{board: b, pins: make(map[int]*SimPin)}
}

func (f *SimPinFactory) ByNumber(n int) (halcore.GPIOPin, bool) {
	p, ok := f.Pin(n)
	if !ok {
		return nil, false
	}
	return p, true
}

// Pin exposes the underlying *SimPin (e.g. to drive inputs).
func (f *SimPinFactory) Pin(n int) (*SimPin, bool) {
	if !f.board.ValidPin(n) {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[n]
	if !ok {
		p = &SimPin{number: n}
		f.pins[n] = p
	}
	return p, true
}

// States snapshots every pin touched so far, ordered by number.
func (f *SimPinFactory) States() []PinState {
	f.mu.Lock()
	pins := make([]*SimPin, 0, len(f.pins))
	for _, p := range f.pins {
		pins = append(pins, p)
	}
	f.mu.Unlock()
	sort.Slice(pins, func(i, j int) bool { return pins[i].number < pins[j].number })
	out := make([]PinState, len(pins))
	for i, p := range pins {
		out[i] = p.State()
	}
	return out
}

// ----------------------------- I²C (sim) -------------------------------------

// I2CTx is one recorded transaction.
type I2CTx struct {
	Addr uint16
	W    []byte
	Rn   int
}

// SimI2C implements drivers.I2C. Writes are recorded; reads return zeros.
type SimI2C struct {
	mu  sync.Mutex
	txs []I2CTx
}

func (h *SimI2C) Tx(addr uint16, w, r []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.txs) == historyCap {
		h.txs = append(h.txs[:0], h.txs[1:]...)
	}
	h.txs = append(h.txs, I2CTx{Addr: addr, W: append([]byte(nil), w...), Rn: len(r)})
	clear(r)
	return nil
}

// Transactions returns a copy of the recorded transactions.
func (h *SimI2C) Transactions() []I2CTx {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]I2CTx(nil), h.txs...)
}

type SimI2CFactory struct {
	buses map[string]*SimI2C
}

// NewSimI2CFactory creates one inert bus per board I²C controller.
func NewSimI2CFactory(b Board) *SimI2CFactory {
	f := &SimI2CFactory{buses: map[string]*SimI2C{}}
	for _, id := range b.I2C {
		f.buses[id] = &SimI2C{}
	}
	return f
}

func (f *SimI2CFactory) ByID(id string) (drivers.I2C, bool) {
	b, ok := f.buses[id]
	if !ok {
		return nil, false
	}
	return b, true
}

// Bus exposes the underlying *SimI2C for inspection.
func (f *SimI2CFactory) Bus(id string) (*SimI2C, bool) {
	b, ok := f.buses[id]
	return b, ok
}

// Sim bundles the simulated factories for one board.
type Sim struct {
	Board Board
	Pins  *SimPinFactory
	I2C   *SimI2CFactory
}

func NewSim(b Board) *Sim {
	return &Sim{Board: b, Pins: NewSimPinFactory(b), I2C: NewSimI2CFactory(b)}
}
