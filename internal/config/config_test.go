package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config dir at an empty temp dir and clears token env vars.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("NIXPR_GITHUB_TOKEN", "")
	return dir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "nixpr", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaultsWhenNoConfigFile(t *testing.T) {
	isolate(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Empty(t, cfg.GitHub.Token)
	assert.Equal(t, "NixOS/nixpkgs", cfg.GitHub.Repository)
	assert.Equal(t, []string{"r-ryantm"}, cfg.Filters.ExcludedUsers)
	assert.Equal(t, []string{"nixos/", "treewide"}, cfg.Filters.ExcludedPrefixes)
	assert.Equal(t, "liberodark/nixpkgs-review-gha", cfg.Review.Repo)
	assert.Equal(t, "review.yml", cfg.Review.Workflow)
}

func TestLoadUserConfigOverridesDefaults(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, `
[github]
token = "ghp_file"

[filters]
excluded_users = ["someone"]
excluded_prefixes = ["nixos/", "treewide", "lib."]

[review]
repo = "me/my-review"
`)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "ghp_file", cfg.GitHub.Token)
	assert.Equal(t, []string{"someone"}, cfg.Filters.ExcludedUsers)
	assert.Equal(t, []string{"nixos/", "treewide", "lib."}, cfg.Filters.ExcludedPrefixes)
	assert.Equal(t, "me/my-review", cfg.Review.Repo)
	// Untouched keys keep their defaults.
	assert.Equal(t, "review.yml", cfg.Review.Workflow)

	rules := cfg.FilterRules()
	assert.Equal(t, []string{"someone"}, rules.ExcludedAuthors)
}

func TestLoadEmptyListDisablesFilter(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, `
[filters]
excluded_users = []
`)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Empty(t, cfg.Filters.ExcludedUsers)
	assert.Equal(t, []string{"nixos/", "treewide"}, cfg.Filters.ExcludedPrefixes)
}

func TestLoadExplicitConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("[review]\nworkflow = \"other.yml\"\n"), 0644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "other.yml", cfg.Review.Workflow)
}

func TestLoadMalformedConfigFails(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, "[github\ntoken = = nope")

	_, err := Load(viper.New(), "")
	require.Error(t, err)

	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestLoadMissingExplicitConfigFails(t *testing.T) {
	isolate(t)

	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestLoadInvalidReviewRepoFails(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, "[review]\nrepo = \"not-a-repo\"\n")

	_, err := Load(viper.New(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "review.repo")
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("GITHUB_TOKEN", "ghp_env")
	t.Setenv("NIXPR_REVIEW_WORKFLOW", "env.yml")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "ghp_env", cfg.GitHub.Token)
	assert.Equal(t, "env.yml", cfg.Review.Workflow)
}

func TestLoadPrefixedTokenWinsOverGenericToken(t *testing.T) {
	isolate(t)
	t.Setenv("GITHUB_TOKEN", "ghp_generic")
	t.Setenv("NIXPR_GITHUB_TOKEN", "ghp_prefixed")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "ghp_prefixed", cfg.GitHub.Token)
}

func TestFilterRulesRemovesDuplicates(t *testing.T) {
	cfg := &Config{Filters: FilterConfig{
		ExcludedUsers:    []string{"r-ryantm", "R-RyanTM", " "},
		ExcludedPrefixes: []string{"treewide", "nixos/", "Treewide"},
	}}

	rules := cfg.FilterRules()
	assert.Equal(t, []string{"r-ryantm"}, rules.ExcludedAuthors)
	assert.Equal(t, []string{"treewide", "nixos/"}, rules.ExcludedPrefixes)
}
