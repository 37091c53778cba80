package main

import (
	"os"

	"github.com/mosaicnetworks/peerfetch/cmd/peerfetch/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
