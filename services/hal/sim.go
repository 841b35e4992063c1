package hal

import (
	"fmt"

	"superkit-go/services/hal/internal/platform"
)

// PinState is a snapshot of one simulated pin.
type PinState = platform.PinState

// Simulator exposes the in-memory pins so tests and the status API can play
// the role of buttons, encoders and signal generators.
type Simulator struct {
	sim *platform.Sim
}

func (s *Simulator) pin(n int) (*platform.SimPin, error) {
	p, ok := s.sim.Pins.Pin(n)
	if !ok {
		return nil, fmt.Errorf("gpio%d: not on %s", n, s.sim.Board.Name)
	}
	return p, nil
}

// Drive sets an input as an external signal would.
func (s *Simulator) Drive(n int, level bool) error {
	p, err := s.pin(n)
	if err != nil {
		return err
	}
	p.Drive(level)
	return nil
}

// Level reads the current level of pin n.
func (s *Simulator) Level(n int) (bool, error) {
	p, err := s.pin(n)
	if err != nil {
		return false, err
	}
	return p.Get(), nil
}

// Pin returns the state of pin n.
func (s *Simulator) Pin(n int) (PinState, error) {
	p, err := s.pin(n)
	if err != nil {
		return PinState{}, err
	}
	return p.State(), nil
}

// Pins snapshots every pin used so far.
func (s *Simulator) Pins() []PinState { return s.sim.Pins.States() }

// Levels returns the recorded level transitions of pin n, oldest first.
func (s *Simulator) Levels(n int) []bool {
	p, err := s.pin(n)
	if err != nil {
		return nil
	}
	return p.Levels()
}

func (s *Simulator) ResetHistory(n int) {
	if p, err := s.pin(n); err == nil {
		p.ResetHistory()
	}
}

// I2CWrites returns the write payloads seen on bus id.
func (s *Simulator) I2CWrites(id string) [][]byte {
	b, ok := s.sim.I2C.Bus(id)
	if !ok {
		return nil
	}
	txs := b.Transactions()
	out := make([][]byte, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.W)
	}
	return out
}
