// Package config provides configuration loading for surface.
// It supports a layered configuration approach with priority:
// CLI flags > environment variables (SURFACE_*) > config file (~/.surface.yaml).
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/buemura/surface/internal/recon"
)

// ScanProfile defines a named set of probes to run together.
type ScanProfile struct {
	Name   string   `mapstructure:"name" yaml:"name"`
	Probes []string `mapstructure:"probes" yaml:"probes"`
}

// Config holds all surface configuration options.
type Config struct {
	DefaultTarget         string        `mapstructure:"default_target" yaml:"default_target"`
	OutputFormat          string        `mapstructure:"output_format" yaml:"output_format"`
	Concurrency           int           `mapstructure:"concurrency" yaml:"concurrency"`
	Timeout               time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ProbeTimeout          time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	WordlistPath          string        `mapstructure:"wordlist_path" yaml:"wordlist_path"`
	SubdomainWordlistPath string        `mapstructure:"subdomain_wordlist_path" yaml:"subdomain_wordlist_path"`
	Ports                 string        `mapstructure:"ports" yaml:"ports"`
	DNSServer             string        `mapstructure:"dns_server" yaml:"dns_server"`
	CrawlMaxDepth         int           `mapstructure:"crawl_max_depth" yaml:"crawl_max_depth"`
	CrawlMaxPages         int           `mapstructure:"crawl_max_pages" yaml:"crawl_max_pages"`
	UserAgent             string        `mapstructure:"user_agent" yaml:"user_agent"`
	InsecureTLS           bool          `mapstructure:"insecure_tls" yaml:"insecure_tls"`
	RateLimit             float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	StoreDSN              string        `mapstructure:"store_dsn" yaml:"store_dsn"`
	LogLevel              string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat             string        `mapstructure:"log_format" yaml:"log_format"`
	Addr                  string        `mapstructure:"addr" yaml:"addr"`
	Phases                recon.Phases  `mapstructure:"phases" yaml:"phases"`
	ScanProfiles          []ScanProfile `mapstructure:"scan_profiles" yaml:"scan_profiles"`
}

// Defaults returns a Config populated with default values.
func Defaults() Config {
	return Config{
		OutputFormat:  "table",
		Concurrency:   10,
		Timeout:       5 * time.Second,
		ProbeTimeout:  5 * time.Minute,
		CrawlMaxDepth: 2,
		CrawlMaxPages: 30,
		InsecureTLS:   true,
		StoreDSN:      "memory",
		LogLevel:      "info",
		LogFormat:     "text",
		Addr:          ":8080",
		Phases:        recon.AllPhases(),
	}
}

// Load reads configuration from ~/.surface.yaml and environment variables.
// It does NOT apply CLI flag overrides; call ApplyFlags for that.
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName(".surface")
	v.SetConfigType("yaml")

	home, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SURFACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no command could run with.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case "table", "json", "markdown", "html":
	default:
		return fmt.Errorf("invalid output_format %q: want table, json, markdown or html", c.OutputFormat)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("invalid concurrency %d: must be at least 1", c.Concurrency)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %s: must be positive", c.Timeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("invalid rate_limit %v: must not be negative", c.RateLimit)
	}
	return nil
}

// ApplyFlags overrides config values with any CLI flags that were explicitly set.
func ApplyFlags(cfg *Config, cmd *cobra.Command) {
	flags := cmd.Flags()

	if flags.Changed("target") {
		val, _ := flags.GetString("target")
		cfg.DefaultTarget = val
	}
	if flags.Changed("output") {
		val, _ := flags.GetString("output")
		cfg.OutputFormat = val
	}
	if flags.Changed("concurrency") {
		val, _ := flags.GetInt("concurrency")
		cfg.Concurrency = val
	}
	if flags.Changed("timeout") {
		val, _ := flags.GetDuration("timeout")
		cfg.Timeout = val
	}
	if flags.Changed("wordlist") {
		val, _ := flags.GetString("wordlist")
		cfg.WordlistPath = val
	}
	if flags.Changed("ports") {
		val, _ := flags.GetString("ports")
		cfg.Ports = val
	}
	if flags.Changed("rate-limit") {
		val, _ := flags.GetFloat64("rate-limit")
		cfg.RateLimit = val
	}
	if flags.Changed("store") {
		val, _ := flags.GetString("store")
		cfg.StoreDSN = val
	}
	if flags.Changed("addr") {
		val, _ := flags.GetString("addr")
		cfg.Addr = val
	}
	if flags.Changed("no-subdomains") {
		val, _ := flags.GetBool("no-subdomains")
		cfg.Phases.Subdomains = !val
	}
	if flags.Changed("no-crawl") {
		val, _ := flags.GetBool("no-crawl")
		cfg.Phases.Crawl = !val
	}
}

// GetProfile returns the scan profile with the given name, or nil if not found.
func (c *Config) GetProfile(name string) *ScanProfile {
	for i := range c.ScanProfiles {
		if c.ScanProfiles[i].Name == name {
			return &c.ScanProfiles[i]
		}
	}
	return nil
}

// WriteYAML prints the effective configuration.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

// ConfigFilePath returns the default config file path (~/.surface.yaml).
func ConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".surface.yaml"
	}
	return filepath.Join(home, ".surface.yaml")
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("default_target", d.DefaultTarget)
	v.SetDefault("output_format", d.OutputFormat)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("probe_timeout", d.ProbeTimeout)
	v.SetDefault("wordlist_path", "")
	v.SetDefault("subdomain_wordlist_path", "")
	v.SetDefault("ports", "")
	v.SetDefault("dns_server", "")
	v.SetDefault("crawl_max_depth", d.CrawlMaxDepth)
	v.SetDefault("crawl_max_pages", d.CrawlMaxPages)
	v.SetDefault("user_agent", "")
	v.SetDefault("insecure_tls", d.InsecureTLS)
	v.SetDefault("rate_limit", 0.0)
	v.SetDefault("store_dsn", d.StoreDSN)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("addr", d.Addr)
	v.SetDefault("phases.ports", true)
	v.SetDefault("phases.fingerprint", true)
	v.SetDefault("phases.subdomains", true)
	v.SetDefault("phases.paths", true)
	v.SetDefault("phases.crawl", true)
}
