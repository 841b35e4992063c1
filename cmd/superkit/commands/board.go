package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"superkit-go/services/hal"
)

func boardCmd() *cobra.Command {
	var sim bool
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the board model and what the HAL can drive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("sim") {
				sim = store.Config().Board.Sim
			}
			b := hal.Board(sim)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "model:   %s\n", b.Model)
			fmt.Fprintf(out, "sim:     %t\n", sim)
			fmt.Fprintf(out, "header:  %s (gpio%d..gpio%d)\n", b.Header, b.GPIOMin, b.GPIOMax)
			fmt.Fprintf(out, "i2c:     %s\n", strings.Join(b.I2C, ", "))
			fmt.Fprintf(out, "devices: %s\n", strings.Join(hal.DeviceTypes(), ", "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&sim, "sim", false, "report the simulator instead of the host")
	return cmd
}
