package main

import (
	"os"

	"github.com/reelsync/reelsync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
