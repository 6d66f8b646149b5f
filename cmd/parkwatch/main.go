// Package main is the entry point for parkwatch.
package main

import (
	"os"

	"github.com/parkwatch/parkwatch/cmd/parkwatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
