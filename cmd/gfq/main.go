// Package main implements the go-flow-query CLI (gfq).
// It searches CFG-feasible dataflow paths in program graph snapshots.
package main

import (
	"os"

	"github.com/l3aro/go-flow-query/cmd/gfq/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	commands.RootCmd.Version = version
	if buildTime != "" {
		commands.RootCmd.Version = version + " (built " + buildTime + ")"
	}
	commands.RootCmd.SetVersionTemplate(`gfq version {{.Version}}
`)

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
