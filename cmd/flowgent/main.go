package main

import (
	"os"

	"github.com/flowgent/flowgent/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
