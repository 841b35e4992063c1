package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"superkit-go/bus"
	"superkit-go/lessons"
	"superkit-go/lessons/kit"
	"superkit-go/services/config"
	"superkit-go/services/hal"
	"superkit-go/services/heartbeat"
	"superkit-go/services/journal"
	"superkit-go/services/status"
	"superkit-go/x/logx"
)

const busQueueLen = 64

func runCmd() *cobra.Command {
	var (
		sim        bool
		statusAddr string
	)
	cmd := &cobra.Command{
		Use:   "run <lesson>",
		Short: "Run one lesson until it finishes or Ctrl-C",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, ok := lessons.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown lesson %q (see superkit list)", args[0])
			}
			c := store.Config()
			if cmd.Flags().Changed("sim") {
				c.Board.Sim = sim
			}
			if cmd.Flags().Changed("status-addr") {
				c.Status.Addr = statusAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLesson(ctx, cmd, e, c)
		},
	}
	cmd.Flags().BoolVar(&sim, "sim", false, "use simulated pins instead of the GPIO header")
	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "serve status and metrics on this address, e.g. :8080")
	return cmd
}

// runLesson starts the services on a fresh bus, runs the lesson in the
// foreground and stops the services once it returns.
func runLesson(ctx context.Context, cmd *cobra.Command, e lessons.Entry, c config.Config) error {
	log := logx.WithComponent("run")
	b := bus.NewBus(busQueueLen)

	svc, err := hal.New(b.NewConnection("hal"), hal.Options{
		Sim:         c.Board.Sim,
		ISRQueueLen: c.HAL.ISRQueueLen,
		I2CTimeout:  time.Duration(c.HAL.I2CTimeoutMs) * time.Millisecond,
		Logger:      logx.WithComponent("hal"),
	})
	if err != nil {
		return err
	}

	cfgConn := b.NewConnection("config")
	store.Publish(cfgConn)

	svcCtx, stopServices := context.WithCancel(context.Background())
	defer stopServices()
	var g errgroup.Group
	g.Go(func() error {
		svc.Run(svcCtx)
		return nil
	})
	hb := heartbeat.New(logx.WithComponent("heartbeat"))
	g.Go(func() error {
		hb.Run(svcCtx, b.NewConnection("heartbeat"))
		return nil
	})
	if c.Status.Addr != "" {
		opt := status.Options{Addr: c.Status.Addr, RatePerMin: c.Status.RatePerMin, Logger: logx.WithComponent("status")}
		if sim := svc.Simulator(); sim != nil {
			opt.Sim = sim
		}
		srv := status.New(b.NewConnection("status"), opt)
		g.Go(func() error {
			if err := srv.Run(svcCtx); err != nil {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
	}
	err = store.Watch(svcCtx, cfgConn, func(old, cur config.Config) {
		if old.Log.Level != cur.Log.Level && logLevel == "" {
			if err := logx.SetLevel(cur.Log.Level); err == nil {
				log.Info().Str("level", cur.Log.Level).Msg("log level changed")
			}
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("config file will not be watched")
	}

	res := lessons.Run(ctx, e, lessons.RunOptions{
		Kit:    kit.New(b.NewConnection("lesson"), 0),
		Out:    cmd.OutOrStdout(),
		Log:    logx.WithComponent("lesson"),
		Model:  svc.Model(),
		Params: store.LessonParams,
	})

	stopServices()
	svcErr := g.Wait()
	if svcErr != nil {
		log.Error().Err(svcErr).Msg("service failed")
	}
	record(c, svc.Model(), res)
	return errors.Join(res.Err, svcErr)
}

// record stores the run in the journal; failures only log.
func record(c config.Config, model string, res lessons.Result) {
	if c.Journal.Path == "" {
		return
	}
	log := logx.WithComponent("journal")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	j, err := journal.Open(ctx, c.Journal.Path, log)
	if err != nil {
		log.Warn().Err(err).Msg("run not recorded")
		return
	}
	defer j.Close()

	run := journal.Run{
		Lesson:    res.Lesson,
		Board:     model,
		Sim:       c.Board.Sim,
		StartedAt: res.Started,
		EndedAt:   res.Ended,
		Outcome:   res.Outcome,
	}
	if res.Err != nil {
		run.Detail = res.Err.Error()
	}
	if _, err := j.Record(ctx, run); err != nil {
		log.Warn().Err(err).Msg("run not recorded")
	}
}
