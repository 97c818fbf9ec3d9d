package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-flow-query/pkg/graph"
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert IN OUT",
	Short: "Convert a graph snapshot between formats",
	Long: `Reads a graph snapshot and writes it in the format implied by the output
file extension (.json, .yaml/.yml, .msgpack/.mp).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := graph.LoadSnapshot(args[0])
		if err != nil {
			return fmt.Errorf("loading graph: %w", err)
		}
		defer g.Close()

		if err := graph.WriteSnapshot(args[1], g); err != nil {
			return fmt.Errorf("writing graph: %w", err)
		}

		stats := g.Stats()
		fmt.Printf("Wrote %s (%d nodes, %d edges)\n", args[1], stats.Nodes, stats.Edges)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(convertCmd)
}
