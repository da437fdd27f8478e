package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig configures the structured-call client used by the classifier,
// spec generator, clarifier and planner.
type LLMConfig struct {
	// Model is the model identifier passed to the Anthropic API.
	Model string `yaml:"model"`

	// MaxTokens caps the completion size of a structured call.
	MaxTokens int `yaml:"max_tokens"`
}

// DispatcherConfig selects and configures the worker dispatch provider.
type DispatcherConfig struct {
	// Provider is "local" (containers with bind-mounted workdirs) or
	// "remote" (task-runner containers exchanging work via git branches).
	Provider string `yaml:"provider"`

	// Image is the worker container image.
	Image string `yaml:"image"`

	// Network is the container network to attach workers to (local only).
	Network string `yaml:"network"`

	// RunnerPath is the task-runner submission binary (remote only).
	RunnerPath string `yaml:"runner_path"`
}

// TimeoutsConfig holds the per-operation wall-clock timeouts.
type TimeoutsConfig struct {
	// Task bounds a single worker dispatch.
	Task time.Duration `yaml:"task"`

	// LLM bounds one structured call.
	LLM time.Duration `yaml:"llm"`

	// Git bounds a single git command.
	Git time.Duration `yaml:"git"`
}

// Config represents worldmind configuration options.
type Config struct {
	// MaxParallel is the wave concurrency cap and the maximum
	// file-overlap-free wave size.
	MaxParallel int `yaml:"max_parallel"`

	// WaveCooldownSeconds pauses between waves to respect rate limits.
	WaveCooldownSeconds int `yaml:"wave_cooldown_seconds"`

	// ReviewScoreThreshold is the minimum reviewer score the quality gate
	// accepts (0..10).
	ReviewScoreThreshold int `yaml:"review_score_threshold"`

	// MaxIterations is the retry cap per task.
	MaxIterations int `yaml:"max_iterations"`

	// WorktreesEnabled uses per-task git worktrees in local mode.
	WorktreesEnabled bool `yaml:"worktrees_enabled"`

	// StrictDeterminism requires deterministic wave selection and merge
	// order.
	StrictDeterminism bool `yaml:"strict_determinism"`

	// LogLevel sets logging verbosity (trace, debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where per-mission logs are written.
	LogDir string `yaml:"log_dir"`

	// StorePath is the sqlite database holding missions and events.
	StorePath string `yaml:"store_path"`

	// LLM configures the structured-call client.
	LLM LLMConfig `yaml:"llm"`

	// Dispatcher configures the worker dispatch provider.
	Dispatcher DispatcherConfig `yaml:"dispatcher"`

	// Timeouts configures per-operation deadlines.
	Timeouts TimeoutsConfig `yaml:"timeouts"`
}

// DefaultConfig returns a Config with the documented default values.
func DefaultConfig() *Config {
	return &Config{
		MaxParallel:          4,
		WaveCooldownSeconds:  0,
		ReviewScoreThreshold: 6,
		MaxIterations:        3,
		WorktreesEnabled:     false,
		StrictDeterminism:    true,
		LogLevel:             "info",
		LogDir:               ".worldmind/logs",
		StorePath:            ".worldmind/missions.db",
		LLM: LLMConfig{
			Model:     "claude-sonnet-4-5",
			MaxTokens: 8192,
		},
		Dispatcher: DispatcherConfig{
			Provider:   "local",
			Image:      "worldmind/worker:latest",
			RunnerPath: "task-runner",
		},
		Timeouts: TimeoutsConfig{
			Task: 45 * time.Minute,
			LLM:  5 * time.Minute,
			Git:  2 * time.Minute,
		},
	}
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without error.
// If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations arrive as strings ("45m"); parse through a shadow struct.
	type yamlTimeouts struct {
		Task string `yaml:"task"`
		LLM  string `yaml:"llm"`
		Git  string `yaml:"git"`
	}
	type yamlConfig struct {
		MaxParallel          *int             `yaml:"max_parallel"`
		WaveCooldownSeconds  *int             `yaml:"wave_cooldown_seconds"`
		ReviewScoreThreshold *int             `yaml:"review_score_threshold"`
		MaxIterations        *int             `yaml:"max_iterations"`
		WorktreesEnabled     *bool            `yaml:"worktrees_enabled"`
		StrictDeterminism    *bool            `yaml:"strict_determinism"`
		LogLevel             string           `yaml:"log_level"`
		LogDir               string           `yaml:"log_dir"`
		StorePath            string           `yaml:"store_path"`
		LLM                  LLMConfig        `yaml:"llm"`
		Dispatcher           DispatcherConfig `yaml:"dispatcher"`
		Timeouts             yamlTimeouts     `yaml:"timeouts"`
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yc.MaxParallel != nil {
		cfg.MaxParallel = *yc.MaxParallel
	}
	if yc.WaveCooldownSeconds != nil {
		cfg.WaveCooldownSeconds = *yc.WaveCooldownSeconds
	}
	if yc.ReviewScoreThreshold != nil {
		cfg.ReviewScoreThreshold = *yc.ReviewScoreThreshold
	}
	if yc.MaxIterations != nil {
		cfg.MaxIterations = *yc.MaxIterations
	}
	if yc.WorktreesEnabled != nil {
		cfg.WorktreesEnabled = *yc.WorktreesEnabled
	}
	if yc.StrictDeterminism != nil {
		cfg.StrictDeterminism = *yc.StrictDeterminism
	}
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}
	if yc.LogDir != "" {
		cfg.LogDir = yc.LogDir
	}
	if yc.StorePath != "" {
		cfg.StorePath = yc.StorePath
	}
	if yc.LLM.Model != "" {
		cfg.LLM.Model = yc.LLM.Model
	}
	if yc.LLM.MaxTokens > 0 {
		cfg.LLM.MaxTokens = yc.LLM.MaxTokens
	}
	if yc.Dispatcher.Provider != "" {
		cfg.Dispatcher.Provider = yc.Dispatcher.Provider
	}
	if yc.Dispatcher.Image != "" {
		cfg.Dispatcher.Image = yc.Dispatcher.Image
	}
	if yc.Dispatcher.Network != "" {
		cfg.Dispatcher.Network = yc.Dispatcher.Network
	}
	if yc.Dispatcher.RunnerPath != "" {
		cfg.Dispatcher.RunnerPath = yc.Dispatcher.RunnerPath
	}

	for name, pair := range map[string]struct {
		raw string
		dst *time.Duration
	}{
		"task": {yc.Timeouts.Task, &cfg.Timeouts.Task},
		"llm":  {yc.Timeouts.LLM, &cfg.Timeouts.LLM},
		"git":  {yc.Timeouts.Git, &cfg.Timeouts.Git},
	} {
		if pair.raw == "" {
			continue
		}
		d, err := time.ParseDuration(pair.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid timeouts.%s %q: %w", name, pair.raw, err)
		}
		*pair.dst = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option ranges.
func (c *Config) Validate() error {
	if c.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be positive, got %d", c.MaxParallel)
	}
	if c.WaveCooldownSeconds < 0 {
		return fmt.Errorf("wave_cooldown_seconds must be non-negative, got %d", c.WaveCooldownSeconds)
	}
	if c.ReviewScoreThreshold < 0 || c.ReviewScoreThreshold > 10 {
		return fmt.Errorf("review_score_threshold must be in 0..10, got %d", c.ReviewScoreThreshold)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	switch c.Dispatcher.Provider {
	case "local", "remote":
	default:
		return fmt.Errorf("dispatcher.provider must be local or remote, got %q", c.Dispatcher.Provider)
	}
	return nil
}
