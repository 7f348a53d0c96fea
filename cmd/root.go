package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "audiowave",
	Short: "Headless music playback daemon",
	Long: `audiowave is a headless music playback daemon. It manages a play
queue over a local music library, mediates extensions through a plugin
host, and exposes an HTTP and websocket control surface for UIs.`,
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
