// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"scm-project-sync/internal/scanner"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel              string        `mapstructure:"LOG_LEVEL"`
	APIURL                string        `mapstructure:"API_URL"`
	APIToken              string        `mapstructure:"API_TOKEN"`
	GithubToken           string        `mapstructure:"GITHUB_TOKEN"`
	GithubHost            string        `mapstructure:"GITHUB_HOST"`
	LogPath               string        `mapstructure:"LOG_PATH"`
	DBURL                 string        `mapstructure:"DB_URL"`
	CloneDir              string        `mapstructure:"CLONE_DIR"`
	CloneDepth            int           `mapstructure:"CLONE_DEPTH"`
	BranchConcurrency     int           `mapstructure:"BRANCH_CONCURRENCY"`
	DeactivateConcurrency int           `mapstructure:"DEACTIVATE_CONCURRENCY"`
	TargetConcurrency     int           `mapstructure:"TARGET_CONCURRENCY"`
	PollInterval          time.Duration `mapstructure:"POLL_INTERVAL"`
	PollTimeout           time.Duration `mapstructure:"POLL_TIMEOUT"`
	RequestTimeout        time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MaxRetries            int           `mapstructure:"MAX_RETRIES"`
	ExclusionGlobs        []string      `mapstructure:"EXCLUSION_GLOBS"`
	Entitlements          []string      `mapstructure:"ENTITLEMENTS"`
	ManifestTypes         []string      `mapstructure:"MANIFEST_TYPES"`
	ListenAddr            string        `mapstructure:"LISTEN_ADDR"`
	FailOnErrors          bool          `mapstructure:"FAIL_ON_ERRORS"`
}

var defaults = map[string]any{
	"LOG_LEVEL":              "info",
	"API_URL":                "https://api.snyk.io",
	"API_TOKEN":              "",
	"GITHUB_TOKEN":           "",
	"GITHUB_HOST":            "",
	"LOG_PATH":               "",
	"DB_URL":                 "",
	"CLONE_DIR":              "",
	"CLONE_DEPTH":            1,
	"BRANCH_CONCURRENCY":     50,
	"DEACTIVATE_CONCURRENCY": 50,
	"TARGET_CONCURRENCY":     15,
	"POLL_INTERVAL":          "5s",
	"POLL_TIMEOUT":           "30m",
	"REQUEST_TIMEOUT":        "30s",
	"MAX_RETRIES":            3,
	"EXCLUSION_GLOBS":        "",
	"ENTITLEMENTS":           "openSource",
	"MANIFEST_TYPES":         "",
	"LISTEN_ADDR":            ":8080",
	"FAIL_ON_ERRORS":         false,
}

// LoadConfig reads configuration from a .env file in dir (if present) and
// environment variables. Environment variables win.
func LoadConfig(dir string) (*Config, error) {
	v := viper.New()

	// Set default values
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
	}

	// Bind environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.ExclusionGlobs = splitList(cfg.ExclusionGlobs)
	cfg.Entitlements = splitList(cfg.Entitlements)
	cfg.ManifestTypes = splitList(cfg.ManifestTypes)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	for key, n := range map[string]int{
		"BRANCH_CONCURRENCY":     c.BranchConcurrency,
		"DEACTIVATE_CONCURRENCY": c.DeactivateConcurrency,
		"TARGET_CONCURRENCY":     c.TargetConcurrency,
	} {
		if n < 1 {
			return fmt.Errorf("%s must be at least 1", key)
		}
	}
	if c.MaxRetries < 0 {
		return errors.New("MAX_RETRIES must not be negative")
	}
	if c.CloneDepth < 0 {
		return errors.New("CLONE_DEPTH must not be negative")
	}
	if c.PollInterval <= 0 || c.PollTimeout <= 0 || c.RequestTimeout <= 0 {
		return errors.New("POLL_INTERVAL, POLL_TIMEOUT and REQUEST_TIMEOUT must be positive durations")
	}
	if len(c.Entitlements) == 0 {
		return errors.New("ENTITLEMENTS must contain at least one entitlement")
	}
	known := scanner.SupportedProjectTypes(c.ScannerEntitlements())
	if len(known) == 0 {
		return fmt.Errorf("ENTITLEMENTS %v grants no project types", c.Entitlements)
	}
	return nil
}

// RequireAPI checks the settings needed to talk to the platform API.
func (c *Config) RequireAPI() error {
	if c.APIToken == "" {
		return errors.New("API_TOKEN is a required configuration field")
	}
	if c.LogPath == "" {
		return errors.New("LOG_PATH is a required configuration field")
	}
	info, err := os.Stat(c.LogPath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("LOG_PATH %q must be an existing directory", c.LogPath)
	}
	return nil
}

// RequireDB checks the settings needed to use the database.
func (c *Config) RequireDB() error {
	if c.DBURL == "" {
		return errors.New("DB_URL is a required configuration field")
	}
	return nil
}

// ScannerEntitlements converts the configured entitlements.
func (c *Config) ScannerEntitlements() []scanner.Entitlement {
	out := make([]scanner.Entitlement, 0, len(c.Entitlements))
	for _, e := range c.Entitlements {
		out = append(out, scanner.Entitlement(e))
	}
	return out
}

// splitList flattens comma separated entries and drops blanks.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
