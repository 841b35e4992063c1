package lessons

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"superkit-go/lessons/kit"
	"superkit-go/services/metrics"
)

// Outcomes recorded for a run.
const (
	OutcomeCompleted   = "completed"
	OutcomeInterrupted = "interrupted"
	OutcomeFailed      = "failed"
)

const cleanupTimeout = 2 * time.Second

type RunOptions struct {
	Kit   *kit.Client
	Out   io.Writer
	Log   zerolog.Logger
	Model string
	// Params, if set, overlays configured values onto the lesson's defaults.
	Params func(lesson string, into any) error
	Seed   uint64 // 0 picks one from the clock
}

type Result struct {
	Lesson  string
	Outcome string
	Started time.Time
	Ended   time.Time
	Err     error
}

// Run configures the HAL for the lesson, runs it until ctx ends or it
// returns, then cleans up. Cancellation is an interruption, not a failure.
func Run(ctx context.Context, e Entry, opt RunOptions) Result {
	res := Result{Lesson: e.Name, Started: time.Now()}
	log := opt.Log.With().Str("lesson", e.Name).Logger()
	l := e.New()

	finish := func(outcome string, err error) Result {
		res.Outcome, res.Err, res.Ended = outcome, err, time.Now()
		metrics.LessonFinished(e.Name, outcome)
		ev := log.Info()
		if err != nil {
			ev = log.Error().Err(err)
		}
		ev.Str("outcome", outcome).Dur("took", res.Ended.Sub(res.Started)).Msg("lesson finished")
		return res
	}

	if opt.Params != nil {
		if err := opt.Params(e.Name, l.Params()); err != nil {
			return finish(OutcomeFailed, fmt.Errorf("lesson params: %w", err))
		}
	}
	seed := opt.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	env := &Env{
		Kit:   opt.Kit,
		Out:   opt.Out,
		Log:   log,
		Model: opt.Model,
		Rand:  rand.New(rand.NewPCG(seed, seed>>1|1)),
	}

	if err := opt.Kit.Configure(ctx, l.Devices()); err != nil {
		return finish(OutcomeFailed, err)
	}
	if err := opt.Kit.WaitReady(ctx); err != nil {
		return finish(OutcomeFailed, err)
	}
	metrics.LessonStarted(e.Name)
	env.Say("%s started on a %s", e.Name, opt.Model)
	log.Info().Msg("lesson started")

	runErr := l.Run(ctx, env)

	if c, ok := l.(Cleaner); ok {
		cctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		if err := c.Cleanup(cctx, env); err != nil {
			log.Warn().Err(err).Msg("cleanup")
		}
		cancel()
	}
	env.Say("\n%s stopped", e.Name)

	switch {
	case ctx.Err() != nil:
		// Controls in flight when ctx ended fail with a no-reply error.
		return finish(OutcomeInterrupted, nil)
	case runErr != nil:
		return finish(OutcomeFailed, runErr)
	default:
		return finish(OutcomeCompleted, nil)
	}
}
