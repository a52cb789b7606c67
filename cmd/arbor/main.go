package main

import (
	"os"

	"github.com/brimdata/arbor/cmd/arbor/command"
)

func main() {
	if err := command.New().Execute(); err != nil {
		os.Exit(1)
	}
}
