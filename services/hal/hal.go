// Package hal runs the hardware abstraction service: it owns the pins and
// buses, builds devices from config/hal and exposes them as capabilities
// under hal/cap/<domain>/<kind>/<name>.
package hal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"superkit-go/bus"
	"superkit-go/services/hal/internal/core"
	"superkit-go/services/hal/internal/halcore"
	"superkit-go/services/hal/internal/platform"
	"superkit-go/services/hal/internal/provider"

	// Device builders register themselves with core.
	_ "superkit-go/services/hal/devices/dc_motor"
	_ "superkit-go/services/hal/devices/gpio_button"
	_ "superkit-go/services/hal/devices/gpio_dout"
	_ "superkit-go/services/hal/devices/lcd1602"
	_ "superkit-go/services/hal/devices/pulse_counter"
	_ "superkit-go/services/hal/devices/pwm_out"
	_ "superkit-go/services/hal/devices/rgb_led"
	_ "superkit-go/services/hal/devices/rotary_encoder"
	_ "superkit-go/services/hal/devices/shift_register"
)

type Options struct {
	Sim         bool // use in-memory pins instead of periph.io
	ISRQueueLen int
	I2CTimeout  time.Duration
	Logger      zerolog.Logger
}

type Service struct {
	conn  *bus.Connection
	log   zerolog.Logger
	model string

	host *platform.Host
	sim  *Simulator
	reg  *provider.Registry
	hal  *core.HAL
}

// New opens the platform (hardware or simulator) and prepares the HAL.
// Nothing runs until Run is called.
func New(conn *bus.Connection, opt Options) (*Service, error) {
	s := &Service{conn: conn, log: opt.Logger, model: platform.BoardModel(opt.Sim)}

	var (
		pins halcore.PinFactory
		i2c  halcore.I2CFactory
	)
	board := platform.RaspberryPi40Pin
	if opt.Sim {
		sim := platform.NewSim(board)
		s.sim = &Simulator{sim: sim}
		pins, i2c = sim.Pins, sim.I2C
	} else {
		h, err := platform.OpenHost(board)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", board.Name, err)
		}
		s.host = h
		pins, i2c = h.Pins, h.I2C
	}

	s.reg = provider.New(pins, i2c, provider.Options{ISRQueueLen: opt.ISRQueueLen, I2CTimeout: opt.I2CTimeout})
	s.hal = core.NewHAL(conn, core.Resources{Reg: s.reg}, opt.Logger)
	return s, nil
}

// Run serves until ctx ends. Devices are closed and pins released before
// it returns.
func (s *Service) Run(ctx context.Context) {
	irqCtx, stopIRQ := context.WithCancel(context.Background())
	s.reg.Start(irqCtx)
	s.log.Info().Str("board", s.model).Bool("sim", s.sim != nil).Msg("hal starting")

	s.hal.Run(ctx)

	// Devices are closed by now; stop the edge worker and bus owners.
	stopIRQ()
	s.reg.Close()
	if s.host != nil {
		if err := s.host.Close(); err != nil {
			s.log.Warn().Err(err).Msg("host close")
		}
	}
	if d := s.reg.ISRDrops(); d > 0 {
		s.log.Warn().Uint32("isr_drops", d).Msg("edge interrupts were dropped")
	}
	if d := s.hal.EmitDrops(); d > 0 {
		s.log.Warn().Uint64("emit_drops", d).Msg("device events were dropped")
	}
	s.log.Info().Msg("hal stopped")
}

// Model is the board model string, or "simulator".
func (s *Service) Model() string { return s.model }

// Simulator is non-nil only in sim mode.
func (s *Service) Simulator() *Simulator { return s.sim }

// BoardInfo describes the header the HAL drives.
type BoardInfo struct {
	Model            string
	Header           string
	GPIOMin, GPIOMax int
	I2C              []string
}

// Board reports the board without opening any hardware.
func Board(sim bool) BoardInfo {
	b := platform.RaspberryPi40Pin
	return BoardInfo{
		Model:   platform.BoardModel(sim),
		Header:  b.Name,
		GPIOMin: b.GPIOMin,
		GPIOMax: b.GPIOMax,
		I2C:     append([]string(nil), b.I2C...),
	}
}

// DeviceTypes lists registered device builder types.
func DeviceTypes() []string { return core.BuilderTypes() }

// Topic helpers for clients.

func TopicConfig() bus.Topic  { return core.TopicConfigHAL() }
func TopicState() bus.Topic   { return core.TopicHALState() }
func TopicCapsAll() bus.Topic { return bus.T("hal", "cap", "#") }
func CapCtrl(domain, kind, name, verb string) bus.Topic {
	return core.CapCtrl(domain, kind, name, verb)
}
func CapValue(domain, kind, name string) bus.Topic { return core.CapValue(domain, kind, name) }
func CapEvent(domain, kind, name string) bus.Topic { return core.CapEvent(domain, kind, name) }
func CapStatus(domain, kind, name string) bus.Topic {
	return core.CapStatus(domain, kind, name)
}
