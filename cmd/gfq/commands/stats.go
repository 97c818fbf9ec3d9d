package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show node and edge counts of a graph snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := openGraph(cmd)
		if err != nil {
			return err
		}
		defer g.Close()

		stats := g.Stats()
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return printJSON(stats)
		}

		fmt.Printf("Nodes: %d\n", stats.Nodes)
		for _, l := range stats.SortedLabels() {
			fmt.Printf("  %-24s %d\n", l, stats.NodesByLabel[l])
		}
		fmt.Printf("Edges: %d\n", stats.Edges)
		for _, t := range stats.SortedTypes() {
			fmt.Printf("  %-24s %d\n", t, stats.EdgesByType[t])
		}
		fmt.Printf("Invoke edges: %d\n", stats.InvokeEdges)
		fmt.Printf("Return edges: %d\n", stats.ReturnEdges)
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(statsCmd)
}
