package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"superkit-go/services/journal"
	"superkit-go/x/logx"
)

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded lesson runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := store.Config().Journal.Path
			if path == "" {
				return errors.New("journal disabled (journal.path is empty)")
			}
			j, err := journal.Open(cmd.Context(), path, logx.WithComponent("journal"))
			if err != nil {
				return err
			}
			defer j.Close()

			runs, err := j.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLESSON\tBOARD\tSTARTED\tTOOK\tOUTCOME\tDETAIL")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID[:min(8, len(r.ID))], r.Lesson, r.Board,
					r.StartedAt.Format(time.DateTime), r.Duration().Round(time.Millisecond),
					r.Outcome, r.Detail)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to show (0 for all)")
	return cmd
}
