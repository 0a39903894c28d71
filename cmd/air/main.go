// Package main is the entry point for the air playout engine.
package main

import (
	"os"

	"github.com/retrovue/air/cmd/air/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
