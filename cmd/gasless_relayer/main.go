package main

import (
	"os"

	"github.com/gasless-relayer/gasless-relayer/cmd/gasless_relayer/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
