// Package main provides the entry point for the synapsense CLI.
package main

import (
	"os"

	"github.com/synapsense/synapsense/cmd/synapsense/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
