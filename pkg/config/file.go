package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFileYAML is the canonical config filename.
	DefaultConfigFileYAML = ".pbanalyzer.yaml"
	// DefaultConfigFileYML is a compatible alternate config filename.
	DefaultConfigFileYML = ".pbanalyzer.yml"
)

// FileConfig represents values loaded from a .pbanalyzer.yaml file.
type FileConfig struct {
	APIBaseURL    string   `yaml:"api_url"`
	Concurrency   *int     `yaml:"concurrency"`
	TimeBudget    string   `yaml:"time_budget"`
	RateLimit     *int     `yaml:"rate_limit"`
	MaxRetries    *int     `yaml:"max_retries"`
	ExcludeTables []string `yaml:"exclude_tables"`
	OutputDir     string   `yaml:"output_dir"`
	Format        string   `yaml:"format"`
}

// Normalize trims and removes empty items from list fields.
func (fc *FileConfig) Normalize() {
	if fc == nil {
		return
	}
	fc.APIBaseURL = strings.TrimSpace(fc.APIBaseURL)
	fc.TimeBudget = strings.TrimSpace(fc.TimeBudget)
	fc.OutputDir = strings.TrimSpace(fc.OutputDir)
	fc.Format = strings.TrimSpace(fc.Format)
	fc.ExcludeTables = normalizeList(fc.ExcludeTables)
}

// Apply merges file values into cfg. Flags are expected to be applied after
// this, so explicit command-line values win.
func (fc *FileConfig) Apply(cfg *Config) error {
	if fc == nil || cfg == nil {
		return nil
	}

	if fc.APIBaseURL != "" {
		cfg.APIBaseURL = fc.APIBaseURL
	}
	if fc.Concurrency != nil {
		cfg.Concurrency = *fc.Concurrency
	}
	if fc.RateLimit != nil {
		cfg.RateLimit = *fc.RateLimit
	}
	if fc.MaxRetries != nil {
		cfg.MaxRetries = *fc.MaxRetries
	}
	if fc.TimeBudget != "" {
		budget, err := ParseDuration(fc.TimeBudget)
		if err != nil {
			return fmt.Errorf("invalid time_budget in config file: %w", err)
		}
		cfg.TimeBudget = budget
	}
	if len(fc.ExcludeTables) > 0 {
		cfg.ExcludeTables = append(cfg.ExcludeTables, fc.ExcludeTables...)
	}
	if fc.OutputDir != "" {
		cfg.OutputDir = fc.OutputDir
	}
	if fc.Format != "" {
		cfg.Format = fc.Format
	}

	return nil
}

// AutoLoadFile discovers and loads the first available config file.
func AutoLoadFile() (*FileConfig, string, error) {
	candidates := []string{
		DefaultConfigFileYAML,
		DefaultConfigFileYML,
	}

	if homeDir, err := os.UserHomeDir(); err == nil && strings.TrimSpace(homeDir) != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, DefaultConfigFileYAML),
			filepath.Join(homeDir, DefaultConfigFileYML),
		)
	}

	return LoadFirstExistingFile(candidates)
}

// LoadFirstExistingFile loads the first config file that exists in paths.
func LoadFirstExistingFile(paths []string) (*FileConfig, string, error) {
	for _, path := range paths {
		candidate := strings.TrimSpace(path)
		if candidate == "" {
			continue
		}

		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("failed to access config file %q: %w", candidate, err)
		}
		if info.IsDir() {
			return nil, "", fmt.Errorf("config path %q is a directory, expected a file", candidate)
		}

		cfg, err := LoadFile(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}

	return nil, "", nil
}

// LoadFile loads config values from a specific YAML file path.
func LoadFile(path string) (*FileConfig, error) {
	filename := strings.TrimSpace(path)
	if filename == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", filename, err)
	}

	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", filename, err)
	}

	cfg.Normalize()
	return cfg, nil
}

func normalizeList(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
