// Package heartbeat logs a periodic liveness line with the HAL state, so a
// long lesson run shows it is still alive in the logs.
package heartbeat

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"superkit-go/bus"
	"superkit-go/services/config"
	"superkit-go/services/hal"
	"superkit-go/types"
)

type Service struct {
	log   zerolog.Logger
	start time.Time
	beats uint64
}

func New(log zerolog.Logger) *Service { return &Service{log: log} }

// Beats is the number of heartbeats logged so far. Read it only after Run
// has returned.
func (s *Service) Beats() uint64 { return s.beats }

// Run beats at the interval from config/heartbeat until ctx ends. An
// interval of zero pauses it until a new config arrives.
func (s *Service) Run(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(config.TopicSection("heartbeat"))
	defer cfgSub.Unsubscribe()
	stateSub := conn.Subscribe(hal.TopicState())
	defer stateSub.Unsubscribe()

	s.start = time.Now()
	state := "unknown"
	tick := time.NewTicker(time.Hour)
	tick.Stop()
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Uint64("beats", s.beats).Msg("heartbeat stopping")
			return
		case <-tick.C:
			s.beats++
			s.log.Info().
				Str("hal", state).
				Dur("uptime", time.Since(s.start).Round(time.Second)).
				Int("goroutines", runtime.NumGoroutine()).
				Msg("heartbeat")
		case msg := <-stateSub.Channel():
			if st, ok := msg.Payload.(types.HALState); ok {
				state = st.Level
			}
		case msg := <-cfgSub.Channel():
			hc, ok := msg.Payload.(config.HeartbeatConfig)
			if !ok {
				s.log.Warn().Str("topic", msg.Topic.String()).Msg("ignoring heartbeat config with unexpected payload")
				continue
			}
			if hc.IntervalS <= 0 {
				tick.Stop()
				s.log.Debug().Msg("heartbeat paused")
				continue
			}
			tick.Reset(time.Duration(hc.IntervalS) * time.Second)
			s.log.Debug().Int("interval_s", hc.IntervalS).Msg("heartbeat interval set")
		}
	}
}
