package main

import (
	"os"

	"superkit-go/cmd/superkit/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
