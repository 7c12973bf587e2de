package main

import (
	"github.com/dyike/VancelleGo/internal/cli"
)

func main() {
	// Execute the root command
	cli.Run()
}
