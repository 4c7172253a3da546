package main

import (
	"os"

	"github.com/jjadal/steward/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
