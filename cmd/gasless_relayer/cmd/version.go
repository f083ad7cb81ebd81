package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gasless-relayer/gasless-relayer/internal/app"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Version of the relayer",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "Version:", app.Version)
		fmt.Fprintln(cmd.OutOrStdout(), "Commit:", app.Commit)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
