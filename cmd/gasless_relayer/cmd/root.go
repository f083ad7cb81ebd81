package cmd

import (
	"github.com/spf13/cobra"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:          "gasless-relayer",
	Short:        "Relays pre-signed forward requests through trusted forwarders on EVM chains",
	SilenceUsage: true,
}
