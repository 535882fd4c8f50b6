package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Config is the umbrella configuration object returned by Initialize and
// used throughout the application.
type Config struct {
	configDir string

	Scheduler *SchedulerConfig
	Gateway   *GatewayConfig
	Cocktails *CocktailRegistry

	RunsDir string
}

// cocktailsYAMLConfig represents the cocktails.yaml file structure.
type cocktailsYAMLConfig struct {
	Cocktails map[string]Cocktail `yaml:"cocktails"`
	Scheduler *SchedulerConfig    `yaml:"scheduler"`
	Gateway   *GatewayConfig      `yaml:"gateway"`
}

// Initialize loads, merges, and validates configuration, returning a
// ready-to-use Config.
//
// Steps:
//  1. Load cocktails.yaml from configDir, if present (absence is not an
//     error — the built-in roster is used as-is).
//  2. Expand environment variables in its contents.
//  3. Parse YAML into structs.
//  4. Merge built-in cocktails with user-defined ones (user wins).
//  5. Apply scheduler/gateway defaults where the user omitted them.
//  6. Build the cocktail registry.
//  7. Validate everything.
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	userCfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	merged := BuiltinCocktails()
	for name, c := range userCfg.Cocktails {
		c.Name = name
		merged[name] = c
	}

	scheduler := DefaultSchedulerConfig()
	if userCfg.Scheduler != nil {
		if err := mergo.Merge(scheduler, userCfg.Scheduler, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging scheduler config: %w", err)
		}
	}

	gateway := DefaultGatewayConfig()
	if userCfg.Gateway != nil {
		if err := mergo.Merge(gateway, userCfg.Gateway, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging gateway config: %w", err)
		}
	}

	runsDir := os.Getenv("RUNS_DIR")
	if runsDir == "" {
		runsDir = "runs"
	}

	cfg := &Config{
		configDir: configDir,
		Scheduler: scheduler,
		Gateway:   gateway,
		Cocktails: NewCocktailRegistry(merged),
		RunsDir:   runsDir,
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	log.Info("Configuration initialized", "cocktails", cfg.Cocktails.Len())
	return cfg, nil
}

// load reads and parses cocktails.yaml from configDir. A missing file is
// not an error; an empty cocktailsYAMLConfig is returned so the built-in
// roster stands alone.
func load(configDir string) (*cocktailsYAMLConfig, error) {
	path := filepath.Join(configDir, "cocktails.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cocktailsYAMLConfig{}, nil
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	var parsed cocktailsYAMLConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidYAML, path, err)
	}
	return &parsed, nil
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Stats summarizes loaded configuration for the health endpoint.
type Stats struct {
	Cocktails int `json:"cocktails"`
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() Stats {
	return Stats{Cocktails: c.Cocktails.Len()}
}
