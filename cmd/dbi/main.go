// Package main is the entry point for the dbi CLI.
package main

import (
	"os"

	"github.com/hazaarlabs/dbi/cmd/dbi/commands"
	"github.com/hazaarlabs/dbi/internal/ui"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		ui.PrintError("%v", err)
		os.Exit(1)
	}
}
