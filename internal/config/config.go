package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/promiseofcake/nixpr/internal/scm"
)

const (
	defaultReviewRepo     = "liberodark/nixpkgs-review-gha"
	defaultReviewWorkflow = "review.yml"
)

// Config is the top-level nixpr configuration.
type Config struct {
	GitHub  GitHubConfig `mapstructure:"github"`
	Filters FilterConfig `mapstructure:"filters"`
	Review  ReviewConfig `mapstructure:"review"`
}

// GitHubConfig controls access to the repository whose PRs are triaged.
type GitHubConfig struct {
	// Token is optional; it only raises the API rate limit.
	Token      string `mapstructure:"token"`
	Repository string `mapstructure:"repository"`
}

// FilterConfig lists the PRs that are never reviewed.
type FilterConfig struct {
	ExcludedUsers    []string `mapstructure:"excluded_users"`
	ExcludedPrefixes []string `mapstructure:"excluded_prefixes"`
}

// ReviewConfig names the workflow that runs the actual review.
type ReviewConfig struct {
	Repo     string `mapstructure:"repo"`
	Workflow string `mapstructure:"workflow"`
}

// FilterRules converts the filter section into scm rules.
func (c *Config) FilterRules() scm.FilterRules {
	return scm.FilterRules{
		ExcludedAuthors:  removeDuplicates(c.Filters.ExcludedUsers),
		ExcludedPrefixes: removeDuplicates(c.Filters.ExcludedPrefixes),
	}
}

// removeDuplicates drops blank entries and case-insensitive repeats, keeping the first spelling.
func removeDuplicates(slice []string) []string {
	seen := make(map[string]bool)
	result := []string{}

	for _, item := range slice {
		normalized := strings.ToLower(strings.TrimSpace(item))
		if normalized != "" && !seen[normalized] {
			seen[normalized] = true
			result = append(result, item)
		}
	}

	return result
}

// ConfigError is returned when a config file exists but cannot be used.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	rules := scm.DefaultFilterRules()
	v.SetDefault("github.token", "")
	v.SetDefault("github.repository", scm.DefaultRepository)
	v.SetDefault("filters.excluded_users", rules.ExcludedAuthors)
	v.SetDefault("filters.excluded_prefixes", rules.ExcludedPrefixes)
	v.SetDefault("review.repo", defaultReviewRepo)
	v.SetDefault("review.workflow", defaultReviewWorkflow)
}

// DefaultDir returns the directory searched for config.toml.
func DefaultDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "nixpr"), nil
}

// Load reads configuration into v and decodes it.
// Resolution order: defaults → config file → NIXPR_* env vars → flags bound on v.
// A missing default config file falls back to defaults; an explicit cfgFile
// that is missing, or any malformed file, is a *ConfigError.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	v.SetConfigType("toml")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := DefaultDir()
		if err != nil {
			return nil, &ConfigError{Err: fmt.Errorf("resolving config directory: %w", err)}
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("NIXPR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Also check for GITHUB_TOKEN specifically
	if err := v.BindEnv("github.token", "NIXPR_GITHUB_TOKEN", "GITHUB_TOKEN"); err != nil {
		return nil, &ConfigError{Err: err}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, &ConfigError{Path: cfgFile, Err: err}
		}
		slog.Debug("no config file found, using defaults")
	} else {
		slog.Debug("using config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Path: v.ConfigFileUsed(), Err: err}
	}

	if _, _, err := scm.SplitRepository(cfg.GitHub.Repository); err != nil {
		return nil, &ConfigError{Path: v.ConfigFileUsed(), Err: fmt.Errorf("github.repository: %w", err)}
	}
	if _, _, err := scm.SplitRepository(cfg.Review.Repo); err != nil {
		return nil, &ConfigError{Path: v.ConfigFileUsed(), Err: fmt.Errorf("review.repo: %w", err)}
	}
	if cfg.Review.Workflow == "" {
		return nil, &ConfigError{Path: v.ConfigFileUsed(), Err: errors.New("review.workflow must not be empty")}
	}

	return &cfg, nil
}
