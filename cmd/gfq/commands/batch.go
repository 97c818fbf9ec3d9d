package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-flow-query/pkg/search"
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch --pairs FILE",
	Short: "Run many searches in parallel",
	Long: `Runs one search per start/end pair on a pool of workers. The pairs file is
a YAML list:

  - start: {kind: node, id: n1}
    end:   {kind: node, id: n9}
  - start: {kind: edge, id: e4}

With --shared-visited all searches claim edges in one visited set, which is
faster but may miss or duplicate paths.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applySearchFlags(cmd, cfg)
		if cmd.Flags().Changed("workers") {
			cfg.Engine.Workers, _ = cmd.Flags().GetInt("workers")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		pairsPath, _ := cmd.Flags().GetString("pairs")
		pairs, err := loadPairs(pairsPath)
		if err != nil {
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

		var shared *search.VisitedSet
		if sharedVisited, _ := cmd.Flags().GetBool("shared-visited"); sharedVisited {
			shared = search.NewVisitedSet()
		}

		ctx, cancel := signalContext()
		defer cancel()

		batch, err := engine.SearchAll(ctx, pairs, cfg.Engine.Workers, shared)
		if err != nil {
			return fmt.Errorf("running batch: %w", err)
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return printJSON(batch)
		}
		for _, res := range batch.Results {
			printResult(res)
			fmt.Println()
		}
		fmt.Printf("Batch %s: %d pairs, %d paths", batch.BatchID, len(batch.Results), len(batch.Paths))
		if batch.Truncated {
			fmt.Print(" (truncated)")
		}
		fmt.Println()
		return nil
	},
}

func init() {
	batchCmd.Flags().String("pairs", "", "YAML file listing start/end anchor pairs (required)")
	batchCmd.Flags().IntP("workers", "w", 0, "Concurrent searches (0 = GOMAXPROCS)")
	batchCmd.Flags().Bool("shared-visited", false, "Share one visited set across all searches")
	batchCmd.Flags().StringP("pattern", "p", "", "Edge-type pattern")
	batchCmd.Flags().Bool("repeat", false, "Let the pattern wrap around after its last segment")
	batchCmd.Flags().BoolP("backward", "b", false, "Follow dataflow edges against their direction")
	batchCmd.Flags().BoolP("all-shortest", "a", false, "Return every shortest path instead of the first")
	batchCmd.Flags().Bool("no-cfg", false, "Skip control-flow validation")
	batchCmd.Flags().String("node-filter", "", "Comma-separated labels traversable nodes must carry")
	batchCmd.Flags().Int("max-depth", 0, "Maximum path length in edges (0 = unlimited)")
	batchCmd.Flags().IntP("max", "m", 0, "Maximum number of paths per search in all-shortest mode")
	batchCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	_ = batchCmd.MarkFlagRequired("pairs")
	RootCmd.AddCommand(batchCmd)
}

// loadPairs reads a YAML list of search pairs. An anchor without a kind is a node.
func loadPairs(path string) ([]search.Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pairs file: %w", err)
	}

	var pairs []search.Pair
	if err := yaml.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("parsing pairs file %s: %w", path, err)
	}
	for i := range pairs {
		for _, a := range []*search.Anchor{&pairs[i].Start, &pairs[i].End} {
			if a.ID != "" && a.Kind == "" {
				a.Kind = search.AnchorNode
			}
		}
		if pairs[i].Start.IsZero() {
			return nil, fmt.Errorf("pair %d: %w", i, search.ErrMissingAnchor)
		}
	}
	return pairs, nil
}
