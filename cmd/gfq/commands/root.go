// Package commands provides the CLI commands for the go-flow-query tool.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-flow-query/internal/config"
	"github.com/l3aro/go-flow-query/internal/log"
	"github.com/l3aro/go-flow-query/pkg/graph"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "gfq",
	Short: "go-flow-query - CFG-validated dataflow path search",
	Long: `go-flow-query searches dataflow paths in a program graph snapshot and
keeps only those that are feasible in the control-flow graph with matched
calls and returns.

Commands:
  search      Find dataflow paths between two anchors
  check       Verify an edge sequence against the CFG
  pattern     Compile and print an edge-type pattern
  batch       Run many searches in parallel
  convert     Convert a graph snapshot between formats
  stats       Show node and edge counts of a snapshot
  init        Create a configuration file interactively

Use "gfq [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Config file path (default: layered ~/.gfq and ./.gfq)")
	RootCmd.PersistentFlags().StringP("graph", "g", "", "Graph snapshot file (.json, .yaml or .msgpack)")
	RootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
}

// loadConfig loads the --config file when given, the layered configuration otherwise.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = log.DebugLevel.String()
	}
	return cfg, nil
}

// openGraph loads the --graph snapshot.
func openGraph(cmd *cobra.Command) (*graph.MemGraph, error) {
	path, _ := cmd.Flags().GetString("graph")
	if path == "" {
		return nil, fmt.Errorf("--graph is required")
	}
	g, err := graph.LoadSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("loading graph: %w", err)
	}
	return g, nil
}

// signalContext is cancelled on SIGINT or SIGTERM, which truncates a running search.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
