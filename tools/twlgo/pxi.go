package main

import (
	"github.com/clktmr/twl/tools/pxisim"

	"github.com/spf13/cobra"
)

var pxiConfig = pxisim.DefaultConfig

func newPxiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pxi [script]",
		Short: "Run driver operations against simulated peripherals",
		Long: `The pxi command boots a processor link with simulated sound, microphone
and touch panel peripherals and runs a script of driver operations against
them. The script is read from stdin if no file is given.

Example:
  printf 'volume 12\nvolume\nmic sample 8bit\n' | twlgo pxi`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, done, err := openScript(args)
			if err != nil {
				return err
			}
			defer done()
			return pxisim.New(pxiConfig, cmd.OutOrStdout()).Run(cmd.Context(), f)
		},
	}
	cmd.Flags().DurationVar(&pxiConfig.Tick, "tick", pxiConfig.Tick, "interval of microphone samples")
	cmd.Flags().DurationVar(&pxiConfig.Frame, "frame", pxiConfig.Frame, "interval of touch panel auto sampling")
	cmd.Flags().DurationVar(&pxiConfig.Timeout, "timeout", pxiConfig.Timeout, "bound for waiting on a full sample buffer")
	return cmd
}
