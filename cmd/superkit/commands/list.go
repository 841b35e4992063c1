package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"superkit-go/lessons"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the lessons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, e := range lessons.All() {
				fmt.Fprintf(tw, "%s\t%s\n", e.Name, e.Title)
			}
			return tw.Flush()
		},
	}
}
