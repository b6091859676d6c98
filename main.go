package main

import (
	"os"

	"github.com/aunum/log"
	"github.com/samuelfneumann/godqn/commands"
)

func main() {
	if err := commands.GetRootCommand().Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
