// Package main provides the leaplg command.
package main

import (
	"os"

	"github.com/leapstack-labs/leaplg/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
