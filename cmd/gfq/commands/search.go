package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-flow-query/internal/config"
	"github.com/l3aro/go-flow-query/pkg/search"
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search --from ID [--to ID]",
	Short: "Find CFG-feasible dataflow paths",
	Long: `Searches dataflow paths from a start anchor to an optional end anchor.
Anchors are node ids unless --from-edge / --to-edge is given.

Examples:
  gfq search -g app.json --from n1 --to n9
  gfq search -g app.json --from e4 --from-edge --all-shortest
  gfq search -g app.json --from n9 --backward --pattern "varWrite|parWrite+" --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applySearchFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		g, err := openGraph(cmd)
		if err != nil {
			return err
		}
		defer g.Close()

		engine, err := search.New(g, cfg.SearchOptions(cfg.NewLogger()))
		if err != nil {
			return fmt.Errorf("creating engine: %w", err)
		}

		start, end := anchorsFromFlags(cmd)

		ctx, cancel := signalContext()
		defer cancel()
		if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
			var stop context.CancelFunc
			ctx, stop = context.WithTimeout(ctx, timeout)
			defer stop()
		}

		result, err := engine.Search(ctx, start, end)
		if err != nil {
			return fmt.Errorf("searching: %w", err)
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return printJSON(result)
		}
		printResult(result)
		return nil
	},
}

func init() {
	searchCmd.Flags().String("from", "", "Start anchor id (required)")
	searchCmd.Flags().Bool("from-edge", false, "Treat --from as an edge id")
	searchCmd.Flags().String("to", "", "End anchor id (empty = any reachable node)")
	searchCmd.Flags().Bool("to-edge", false, "Treat --to as an edge id")
	searchCmd.Flags().StringP("pattern", "p", "", "Edge-type pattern, e.g. \"varWrite|parWrite+\"")
	searchCmd.Flags().Bool("repeat", false, "Let the pattern wrap around after its last segment")
	searchCmd.Flags().BoolP("backward", "b", false, "Follow dataflow edges against their direction")
	searchCmd.Flags().BoolP("all-shortest", "a", false, "Return every shortest path instead of the first")
	searchCmd.Flags().Bool("no-cfg", false, "Skip control-flow validation")
	searchCmd.Flags().String("node-filter", "", "Comma-separated labels traversable nodes must carry")
	searchCmd.Flags().Int("max-depth", 0, "Maximum path length in edges (0 = unlimited)")
	searchCmd.Flags().IntP("max", "m", 0, "Maximum number of paths in all-shortest mode (0 = unlimited)")
	searchCmd.Flags().Duration("timeout", 0, "Stop the search after this long and return partial results")
	searchCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	_ = searchCmd.MarkFlagRequired("from")
	RootCmd.AddCommand(searchCmd)
}

// applySearchFlags overrides configuration values with explicitly set flags.
func applySearchFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("pattern") {
		cfg.Search.RelSequence, _ = flags.GetString("pattern")
	}
	if flags.Changed("repeat") {
		cfg.Search.Repeat, _ = flags.GetBool("repeat")
	}
	if flags.Changed("backward") {
		cfg.Search.Backward, _ = flags.GetBool("backward")
	}
	if flags.Changed("all-shortest") {
		cfg.Search.AllShortestPath, _ = flags.GetBool("all-shortest")
	}
	if flags.Changed("no-cfg") {
		noCFG, _ := flags.GetBool("no-cfg")
		cfg.Search.CFGCheck = !noCFG
	}
	if flags.Changed("node-filter") {
		cfg.Search.NodeFilter, _ = flags.GetString("node-filter")
	}
	if flags.Changed("max-depth") {
		cfg.Search.MaxDepth, _ = flags.GetInt("max-depth")
	}
	if flags.Changed("max") {
		cfg.Search.MaxResults, _ = flags.GetInt("max")
	}
}

func anchorsFromFlags(cmd *cobra.Command) (search.Anchor, search.Anchor) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	fromEdge, _ := cmd.Flags().GetBool("from-edge")
	toEdge, _ := cmd.Flags().GetBool("to-edge")
	return anchor(from, fromEdge), anchor(to, toEdge)
}

func anchor(id string, edge bool) search.Anchor {
	switch {
	case id == "":
		return search.Anchor{}
	case edge:
		return search.EdgeAnchor(id)
	default:
		return search.NodeAnchor(id)
	}
}

func printResult(result *search.Result) {
	fmt.Printf("=== %s -> %s (%s) ===\n", result.Start, result.End, result.Category)
	if len(result.Paths) == 0 {
		fmt.Println("No paths found")
	}
	for i, p := range result.Paths {
		fmt.Printf("%3d. [%d] %s\n", i+1, p.Len(), p)
		if len(p.Frontier) > 0 {
			fmt.Printf("       frontier: %v\n", p.Frontier)
		}
	}
	if result.Truncated {
		fmt.Println("(truncated)")
	}
	s := result.Stats
	fmt.Printf("\nExpanded: %d  Checked: %d  Rejected: %d  Deduped: %d\n",
		s.Expanded, s.Checked, s.Rejected, s.Deduped)
	if s.Incomplete > 0 {
		fmt.Printf("Warning: %d CFG checks hit the state or hop budget; paths may be missing\n", s.Incomplete)
	}
}
