package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-flow-query/pkg/pattern"
)

// PatternOutput represents the output structure for JSON
type PatternOutput struct {
	Pattern   string            `json:"pattern"`
	Expanded  string            `json:"expanded"`
	Loop      bool              `json:"loop"`
	Segments  []pattern.Segment `json:"segments"`
	Terminals []int             `json:"terminals"` // Indexes a path may stop at
}

// patternCmd represents the pattern command
var patternCmd = &cobra.Command{
	Use:   "pattern PATTERN",
	Short: "Compile and print an edge-type pattern",
	Long: `Compiles an edge-type pattern and prints its expanded segments.
Segments are separated by ',', alternatives by '|'; a trailing '*' makes a
segment optional and repeatable, a trailing '+' requires at least one.

Examples:
  gfq pattern "varWrite|parWrite|retWrite+"
  gfq pattern --reverse "parWrite,varWrite*,retWrite"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repeat, _ := cmd.Flags().GetBool("repeat")
		reverse, _ := cmd.Flags().GetBool("reverse")

		a, err := pattern.Compile(args[0], repeat)
		if err != nil {
			return err
		}
		if reverse {
			a = a.Reverse()
		}

		out := PatternOutput{
			Pattern:  args[0],
			Expanded: a.String(),
			Loop:     a.Loop(),
			Segments: a.Segments(),
		}
		for i := 0; i <= a.Len(); i++ {
			if a.IsTerminal(i) {
				out.Terminals = append(out.Terminals, i)
			}
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return printJSON(out)
		}

		fmt.Printf("Pattern:  %s\n", out.Pattern)
		fmt.Printf("Expanded: %s\n", out.Expanded)
		fmt.Printf("Loop:     %v\n", out.Loop)
		fmt.Printf("\nSegments (%d):\n", len(out.Segments))
		for i, s := range out.Segments {
			fmt.Printf("  %d: %s\n", i, s)
		}
		fmt.Printf("\nTerminal indexes: %v\n", out.Terminals)
		return nil
	},
}

func init() {
	patternCmd.Flags().Bool("repeat", false, "Wrap around after the last segment")
	patternCmd.Flags().Bool("reverse", false, "Print the automaton used for backward search")
	patternCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(patternCmd)
}
