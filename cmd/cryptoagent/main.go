package main

import (
	"os"

	"github.com/rustyeddy/cryptoagent/cmd/cryptoagent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
