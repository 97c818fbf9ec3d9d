package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-flow-query/pkg/graph"
	"github.com/l3aro/go-flow-query/pkg/reach"
	"github.com/l3aro/go-flow-query/pkg/search"
)

// CheckStep is one edge of a checked sequence.
type CheckStep struct {
	Edge       string   `json:"edge"`                 // Edge id
	Frontier   []string `json:"frontier"`             // CFG blocks reachable after the edge
	Stacks     []string `json:"stacks,omitempty"`     // Frontier states with pending calls, as "block [stack]"
	Feasible   bool     `json:"feasible"`             // Whether the prefix ending here is feasible
	Incomplete bool     `json:"incomplete,omitempty"` // The state or hop budget cut the check short
}

// CheckOutput represents the output structure for JSON
type CheckOutput struct {
	Steps    []CheckStep `json:"steps"`
	Feasible bool        `json:"feasible"`
	FailedAt int         `json:"failed_at"` // Index of the first infeasible edge, -1 if none
}

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check EDGE...",
	Short: "Verify an edge sequence against the CFG",
	Long: `Checks that a sequence of dataflow edges, given in traversal order, is
feasible in the control-flow graph and prints the frontier after each edge.

Examples:
  gfq check -g app.json e1 e7 e9
  gfq check -g app.json --backward e9 e7 e1`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("backward") {
			cfg.Search.Backward, _ = cmd.Flags().GetBool("backward")
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

		ctx, cancel := signalContext()
		defer cancel()

		out, err := checkSequence(ctx, g, engine.Checker(), args)
		if err != nil {
			return err
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return printJSON(out)
		}
		printCheck(out)
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolP("backward", "b", false, "Edges are given against dataflow direction")
	checkCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(checkCmd)
}

// checkSequence steps the checker across ids one edge at a time.
func checkSequence(ctx context.Context, store graph.Store, checker *reach.Checker, ids []string) (*CheckOutput, error) {
	out := &CheckOutput{Feasible: true, FailedAt: -1}

	var (
		prev     *graph.Edge
		frontier *reach.Frontier
	)
	for i, id := range ids {
		edge, err := store.Edge(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolving edge %s: %w", id, err)
		}

		if prev == nil {
			frontier, err = checker.Init(ctx, edge)
		} else {
			frontier, err = checker.Step(ctx, frontier, prev, edge)
		}
		if err != nil {
			return nil, fmt.Errorf("checking edge %s: %w", id, err)
		}

		step := CheckStep{
			Edge:       id,
			Frontier:   frontier.Blocks(),
			Feasible:   !frontier.Empty(),
			Incomplete: frontier.Incomplete(),
		}
		for _, s := range frontier.States() {
			if !s.Stack.Empty() {
				step.Stacks = append(step.Stacks, s.Block+" "+s.Stack.String())
			}
		}
		out.Steps = append(out.Steps, step)

		if frontier.Empty() {
			out.Feasible = false
			out.FailedAt = i
			break
		}
		prev = edge
	}
	return out, nil
}

func printCheck(out *CheckOutput) {
	for i, step := range out.Steps {
		mark := "ok"
		if !step.Feasible {
			mark = "INFEASIBLE"
		}
		if step.Incomplete {
			mark += "?"
		}
		fmt.Printf("%3d. %-12s %-10s frontier=%v\n", i+1, step.Edge, mark, step.Frontier)
		for _, s := range step.Stacks {
			fmt.Printf("       pending %s\n", s)
		}
	}
	if out.Feasible {
		fmt.Println("\nSequence is feasible")
		return
	}
	fmt.Printf("\nSequence is infeasible at edge %d (%s)\n", out.FailedAt+1, out.Steps[out.FailedAt].Edge)
}
