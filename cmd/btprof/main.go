package main

import (
	"os"

	"github.com/psantana5/buildtime-profiler/cmd/btprof/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
