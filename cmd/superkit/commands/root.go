// Package commands wires the superkit CLI.
package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"superkit-go/lessons"
	"superkit-go/services/config"
	"superkit-go/x/logx"
)

var (
	configPath string
	logLevel   string
	store      *config.Store
)

func Execute() error {
	return newRoot().Execute()
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "superkit",
		Short:        "Run the Super Starter Kit lessons on a Raspberry Pi or in a simulator",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load(config.ResolvePath(configPath), logx.WithComponent("config"))
			if err != nil {
				return err
			}
			if err := checkLessons(s); err != nil {
				return err
			}
			c := s.Config()
			if logLevel != "" {
				c.Log.Level = logLevel
			}
			logx.Configure(logx.Config{Level: c.Log.Level, Format: c.Log.Format, Output: cmd.ErrOrStderr()})
			store = s
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $"+config.EnvFile+")")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(listCmd(), runCmd(), historyCmd(), boardCmd())
	return root
}

// checkLessons validates every lesson's params as they will run: built-in
// defaults with the configured overrides on top.
func checkLessons(s *config.Store) error {
	var errs []error
	for _, e := range lessons.All() {
		if err := s.CheckLesson(e.Name, e.New().Params()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
