package main

import (
	"os"

	"github.com/pterm/pterm"

	"github.com/melih-ucgun/pldownloader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		pterm.Error.Println(cmd.Describe(err))
		os.Exit(1)
	}
}
