package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-flow-query/internal/config"
	"github.com/l3aro/go-flow-query/pkg/pattern"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize gfq configuration interactively",
	Long: `Guides you through setting up gfq configuration step by step.
Creates a config file with the default search mode, the edge-type pattern
and the call-matching limits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		return runInit(path)
	},
}

func init() {
	initCmd.Flags().String("path", "", "Write the config to this file instead of asking for a scope")
	RootCmd.AddCommand(initCmd)
}

func runInit(configPath string) error {
	cfg := config.DefaultConfig()

	// === SECTION 1: Scope ===
	if configPath == "" {
		var scope string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Where should the configuration be saved?").
					Options(
						huh.NewOption("Project (./.gfq/config.yaml)", "project"),
						huh.NewOption("Global (~/.gfq/config.yaml)", "global"),
					).
					Value(&scope),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		configPath = config.ProjectConfigPath()
		if scope == "global" {
			configPath = config.GlobalConfigPath()
		}
	}

	// === SECTION 2: Search ===
	direction := "forward"
	mode := "first"
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Edge-type pattern").
				Description("Segments separated by ',', alternatives by '|', suffix '*' or '+'").
				Placeholder(pattern.DefaultPattern).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					_, err := pattern.Compile(s, false)
					return err
				}).
				Value(&cfg.Search.RelSequence),
			huh.NewSelect[string]().
				Title("Search direction").
				Options(
					huh.NewOption("Forward (follow dataflow)", "forward"),
					huh.NewOption("Backward (against dataflow)", "backward"),
				).
				Value(&direction),
			huh.NewSelect[string]().
				Title("Results").
				Options(
					huh.NewOption("First shortest path", "first"),
					huh.NewOption("All shortest paths", "all"),
				).
				Value(&mode),
			huh.NewConfirm().
				Title("Validate paths against the control-flow graph?").
				Affirmative("Yes").
				Negative("No").
				Value(&cfg.Search.CFGCheck),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	if cfg.Search.RelSequence == "" {
		cfg.Search.RelSequence = pattern.DefaultPattern
	}
	cfg.Search.Backward = direction == "backward"
	cfg.Search.AllShortestPath = mode == "all"

	// === SECTION 3: Call matching ===
	callDepth := strconv.Itoa(cfg.Engine.MaxCallDepth)
	if cfg.Search.CFGCheck {
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Maximum call depth").
					Description("Deeper call chains are pruned").
					Validate(func(s string) error {
						if n, err := strconv.Atoi(s); err != nil || n <= 0 {
							return fmt.Errorf("enter a positive number")
						}
						return nil
					}).
					Value(&callDepth),
				huh.NewInput().
					Title("Node property holding the function name").
					Value(&cfg.Engine.FunctionProperty),
				huh.NewConfirm().
					Title("Accept returns into callers outside the path?").
					Description("Needed when a path starts inside a function").
					Value(&cfg.Engine.ExternalEntry),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		cfg.Engine.MaxCallDepth, _ = strconv.Atoi(callDepth)
	}

	// === SECTION 4: Logging ===
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Log level").
				Options(
					huh.NewOption("Info", "info"),
					huh.NewOption("Debug", "debug"),
					huh.NewOption("Warn", "warn"),
					huh.NewOption("Error", "error"),
				).
				Value(&cfg.Log.Level),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// Confirm overwrite
	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Println("\n=== Configuration Preview ===")
	fmt.Printf("Config path: %s\n", configPath)
	fmt.Printf("Pattern: %s\n", cfg.Search.RelSequence)
	fmt.Printf("Direction: %s\n", direction)
	fmt.Printf("All shortest paths: %v\n", cfg.Search.AllShortestPath)
	fmt.Printf("CFG check: %v\n", cfg.Search.CFGCheck)
	if cfg.Search.CFGCheck {
		fmt.Printf("Max call depth: %d\n", cfg.Engine.MaxCallDepth)
		fmt.Printf("Function property: %s\n", cfg.Engine.FunctionProperty)
		fmt.Printf("External entry: %v\n", cfg.Engine.ExternalEntry)
	}
	fmt.Printf("Log level: %s\n", cfg.Log.Level)
	fmt.Println("================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	// Read it back to make sure it loads
	if _, err := config.LoadFromFile(configPath); err != nil {
		return fmt.Errorf("loading saved config: %w", err)
	}
	absPath, _ := filepath.Abs(configPath)
	fmt.Printf("Configuration saved to: %s\n", absPath)
	return nil
}
