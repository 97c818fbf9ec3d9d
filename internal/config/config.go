package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-flow-query/internal/log"
	"github.com/l3aro/go-flow-query/pkg/pattern"
	"github.com/l3aro/go-flow-query/pkg/reach"
	"github.com/l3aro/go-flow-query/pkg/search"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all configuration for go-flow-query
type Config struct {
	Search SearchConfig `yaml:"search"`
	Engine EngineConfig `yaml:"engine"`
	Log    LogConfig    `yaml:"log"`
}

// SearchConfig holds the per-search options.
type SearchConfig struct {
	// CFGCheck validates every step against the control-flow graph
	CFGCheck bool `yaml:"cfg_check" env:"GFQ_CFG_CHECK"`

	// RelSequence is the edge-type pattern, e.g. "varWrite|parWrite|retWrite+"
	RelSequence string `yaml:"rel_sequence" env:"GFQ_REL_SEQUENCE"`

	Repeat          bool `yaml:"repeat" env:"GFQ_REPEAT"`
	Backward        bool `yaml:"backward" env:"GFQ_BACKWARD"`
	AllShortestPath bool `yaml:"all_shortest_path" env:"GFQ_ALL_SHORTEST_PATH"`

	// NodeFilter is a comma-separated list of labels traversable nodes must carry
	NodeFilter string `yaml:"node_filter" env:"GFQ_NODE_FILTER"`

	// CFGConfiguration overrides or extends the default CFG settings
	CFGConfiguration reach.Settings `yaml:"cfg_configuration,omitempty"`

	// Limits (0 means unbounded)
	MaxDepth   int `yaml:"max_depth" env:"GFQ_MAX_DEPTH"`
	MaxResults int `yaml:"max_results" env:"GFQ_MAX_RESULTS"`
}

// EngineConfig holds the call-matching and resource knobs.
type EngineConfig struct {
	ExternalEntry        bool   `yaml:"external_entry" env:"GFQ_EXTERNAL_ENTRY"`
	MaxCallDepth         int    `yaml:"max_call_depth" env:"GFQ_MAX_CALL_DEPTH"`
	FunctionProperty     string `yaml:"function_property" env:"GFQ_FUNCTION_PROPERTY"`
	FunctionDelimiter    string `yaml:"function_delimiter" env:"GFQ_FUNCTION_DELIMITER"`
	AssociationCacheSize int    `yaml:"association_cache_size" env:"GFQ_CACHE_SIZE"`
	MaxStates            int    `yaml:"max_states" env:"GFQ_MAX_STATES"`

	// Workers bounds concurrent searches in batch mode (0 means GOMAXPROCS)
	Workers int `yaml:"workers" env:"GFQ_WORKERS"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" env:"GFQ_LOG_LEVEL"`
	JSON  bool   `yaml:"json" env:"GFQ_LOG_JSON"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	opts := search.DefaultOptions()
	return &Config{
		Search: SearchConfig{
			CFGCheck:    opts.CFGCheck,
			RelSequence: opts.RelSequence,
		},
		Engine: EngineConfig{
			ExternalEntry:        opts.ExternalEntry,
			MaxCallDepth:         opts.MaxCallDepth,
			FunctionProperty:     opts.FunctionProperty,
			FunctionDelimiter:    opts.FunctionDelimiter,
			AssociationCacheSize: opts.AssociationCacheSize,
			MaxStates:            opts.MaxStates,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// GlobalConfigPath returns the global config file path (~/.gfq/config.yaml)
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ProjectConfigPath()
	}
	return filepath.Join(home, ".gfq", "config.yaml")
}

// ProjectConfigPath returns the project-level config file path (./.gfq/config.yaml)
func ProjectConfigPath() string {
	return filepath.Join(".gfq", "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.gfq/config.yaml)
// 3. Global config (~/.gfq/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{GlobalConfigPath(), ProjectConfigPath()} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GFQ_CFG_CHECK"); v != "" {
		cfg.Search.CFGCheck = parseBool(v)
	}
	if v := os.Getenv("GFQ_REL_SEQUENCE"); v != "" {
		cfg.Search.RelSequence = v
	}
	if v := os.Getenv("GFQ_REPEAT"); v != "" {
		cfg.Search.Repeat = parseBool(v)
	}
	if v := os.Getenv("GFQ_BACKWARD"); v != "" {
		cfg.Search.Backward = parseBool(v)
	}
	if v := os.Getenv("GFQ_ALL_SHORTEST_PATH"); v != "" {
		cfg.Search.AllShortestPath = parseBool(v)
	}
	if v := os.Getenv("GFQ_NODE_FILTER"); v != "" {
		cfg.Search.NodeFilter = v
	}
	if v := os.Getenv("GFQ_MAX_DEPTH"); v != "" {
		if i := parseInt(v); i >= 0 {
			cfg.Search.MaxDepth = i
		}
	}
	if v := os.Getenv("GFQ_MAX_RESULTS"); v != "" {
		if i := parseInt(v); i >= 0 {
			cfg.Search.MaxResults = i
		}
	}
	if v := os.Getenv("GFQ_EXTERNAL_ENTRY"); v != "" {
		cfg.Engine.ExternalEntry = parseBool(v)
	}
	if v := os.Getenv("GFQ_MAX_CALL_DEPTH"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.Engine.MaxCallDepth = i
		}
	}
	if v := os.Getenv("GFQ_FUNCTION_PROPERTY"); v != "" {
		cfg.Engine.FunctionProperty = v
	}
	if v, ok := os.LookupEnv("GFQ_FUNCTION_DELIMITER"); ok {
		cfg.Engine.FunctionDelimiter = v
	}
	if v := os.Getenv("GFQ_CACHE_SIZE"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.Engine.AssociationCacheSize = i
		}
	}
	if v := os.Getenv("GFQ_MAX_STATES"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.Engine.MaxStates = i
		}
	}
	if v := os.Getenv("GFQ_WORKERS"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.Engine.Workers = i
		}
	}
	if v := os.Getenv("GFQ_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GFQ_LOG_JSON"); v != "" {
		cfg.Log.JSON = parseBool(v)
	}
}

// Validate checks that the configuration can drive a search
func (c *Config) Validate() error {
	if _, err := pattern.Compile(c.Search.RelSequence, c.Search.Repeat); err != nil {
		return fmt.Errorf("%w: rel_sequence: %v", ErrInvalidConfig, err)
	}
	if err := c.Search.CFGConfiguration.Validate(); err != nil {
		return fmt.Errorf("%w: cfg_configuration: %v", ErrInvalidConfig, err)
	}
	if c.Search.MaxDepth < 0 {
		return fmt.Errorf("%w: max_depth must be non-negative", ErrInvalidConfig)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("%w: max_results must be non-negative", ErrInvalidConfig)
	}
	if c.Engine.MaxCallDepth <= 0 {
		return fmt.Errorf("%w: max_call_depth must be positive", ErrInvalidConfig)
	}
	if c.Engine.FunctionProperty == "" {
		return fmt.Errorf("%w: function_property is required", ErrInvalidConfig)
	}
	if c.Engine.AssociationCacheSize < 0 {
		return fmt.Errorf("%w: association_cache_size must be non-negative", ErrInvalidConfig)
	}
	if c.Engine.MaxStates < 0 {
		return fmt.Errorf("%w: max_states must be non-negative", ErrInvalidConfig)
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative", ErrInvalidConfig)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	return nil
}

// SearchOptions converts the configuration into engine options.
func (c *Config) SearchOptions(logger log.Logger) search.Options {
	return search.Options{
		CFGCheck:             c.Search.CFGCheck,
		RelSequence:          c.Search.RelSequence,
		Repeat:               c.Search.Repeat,
		Backward:             c.Search.Backward,
		AllShortestPath:      c.Search.AllShortestPath,
		NodeFilter:           search.ParseNodeFilter(c.Search.NodeFilter),
		CFGConfiguration:     c.Search.CFGConfiguration,
		MaxDepth:             c.Search.MaxDepth,
		MaxResults:           c.Search.MaxResults,
		ExternalEntry:        c.Engine.ExternalEntry,
		MaxCallDepth:         c.Engine.MaxCallDepth,
		FunctionProperty:     c.Engine.FunctionProperty,
		FunctionDelimiter:    c.Engine.FunctionDelimiter,
		AssociationCacheSize: c.Engine.AssociationCacheSize,
		MaxStates:            c.Engine.MaxStates,
		Logger:               logger,
	}
}

// NewLogger builds a logger from the log section.
func (c *Config) NewLogger() *log.DefaultLogger {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	return log.New(log.LoggerConfig{Level: level, JSONOutput: c.Log.JSON})
}

// parseBool accepts true/1/yes, case-insensitively
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// parseInt attempts to parse a string as int, returning -1 on failure
func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return -1
	}
	return i
}
