package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/stratlab/strategies"
)

const version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "stratlab version %s\n", version)
		fmt.Fprintf(out, "strategies: %v\n", strategies.Names())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
