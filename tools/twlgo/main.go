package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "twlgo",
	Short: "twlgo is a tool for development of drivers for the second processor",
	Long: `twlgo runs scripts against the VRAM managers and against drivers talking
to simulated peripherals over a processor link.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(newVramCmd(), newPxiCmd())
}

func main() {
	log.Default().SetFlags(0)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openScript returns the script named by args, or stdin if there is none.
func openScript(args []string) (*os.File, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
