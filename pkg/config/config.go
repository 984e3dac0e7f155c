// Package config loads browserhub settings from a YAML file overlaid with
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBaseURL is the Browserbase API endpoint
	DefaultBaseURL = "https://api.browserbase.com"

	DefaultViewportWidth  = 1024
	DefaultViewportHeight = 768

	// Artifact backends
	BackendMemory = "memory"
	BackendRedis  = "redis"

	defaultRedisAddr      = "localhost:6379"
	defaultArtifactPrefix = "browserhub:artifacts:"
)

// Config represents the full browserhub configuration
type Config struct {
	Browserbase BrowserbaseConfig `yaml:"browserbase" json:"browserbase"`
	Artifacts   ArtifactConfig    `yaml:"artifacts" json:"artifacts"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// BrowserbaseConfig configures remote session creation
type BrowserbaseConfig struct {
	APIKey    string `yaml:"api_key" json:"api_key"`
	ProjectID string `yaml:"project_id" json:"project_id"`
	BaseURL   string `yaml:"base_url" json:"base_url"`

	// Context reuses a persisted Browserbase context across sessions
	Context ContextConfig `yaml:"context" json:"context"`

	Proxies         bool `yaml:"proxies" json:"proxies"`
	KeepAlive       bool `yaml:"keep_alive" json:"keep_alive"`
	AdvancedStealth bool `yaml:"advanced_stealth" json:"advanced_stealth"`

	Viewport ViewportConfig `yaml:"viewport" json:"viewport"`

	// Cookies are injected into the browser context after connecting
	Cookies []CookieConfig `yaml:"cookies" json:"cookies"`
}

// ContextConfig identifies a Browserbase context
type ContextConfig struct {
	ID      string `yaml:"id" json:"id"`
	Persist *bool  `yaml:"persist" json:"persist"` // defaults to true when ID is set
}

// ShouldPersist reports whether context changes are saved back to Browserbase.
func (c ContextConfig) ShouldPersist() bool {
	if c.Persist == nil {
		return true
	}
	return *c.Persist
}

// ViewportConfig sets the remote browser window size
type ViewportConfig struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// CookieConfig is one cookie to add to the browser context.
// Either URL or Domain must be set.
type CookieConfig struct {
	Name     string  `yaml:"name" json:"name"`
	Value    string  `yaml:"value" json:"value"`
	URL      string  `yaml:"url" json:"url"`
	Domain   string  `yaml:"domain" json:"domain"`
	Path     string  `yaml:"path" json:"path"`
	Expires  float64 `yaml:"expires" json:"expires"`
	HTTPOnly bool    `yaml:"http_only" json:"http_only"`
	Secure   bool    `yaml:"secure" json:"secure"`
	SameSite string  `yaml:"same_site" json:"same_site"` // Strict, Lax or None
}

// ArtifactConfig selects where captured screenshots are kept
type ArtifactConfig struct {
	Backend   string `yaml:"backend" json:"backend"`
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`
	RedisDB   int    `yaml:"redis_db" json:"redis_db"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`

	// Dir overrides the log directory; "-" logs to stderr
	Dir string `yaml:"dir" json:"dir"`
}

// envOverrides are read with envdecode and win over file values when set.
type envOverrides struct {
	APIKey          string `env:"BROWSERBASE_API_KEY"`
	ProjectID       string `env:"BROWSERBASE_PROJECT_ID"`
	BaseURL         string `env:"BROWSERBASE_BASE_URL"`
	ContextID       string `env:"BROWSERHUB_CONTEXT_ID"`
	ArtifactBackend string `env:"BROWSERHUB_ARTIFACT_BACKEND"`
	RedisAddr       string `env:"REDIS_ADDR"`
	Verbosity       string `env:"BROWSERHUB_LOG_VERBOSITY"`
}

// DefaultConfig returns a configuration with defaults for every optional field
func DefaultConfig() *Config {
	return &Config{
		Browserbase: BrowserbaseConfig{
			BaseURL: DefaultBaseURL,
			Viewport: ViewportConfig{
				Width:  DefaultViewportWidth,
				Height: DefaultViewportHeight,
			},
		},
		Artifacts: ArtifactConfig{
			Backend:   BackendMemory,
			RedisAddr: defaultRedisAddr,
			KeyPrefix: defaultArtifactPrefix,
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

// Load reads the YAML file at path (if any) on top of DefaultConfig, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envdecode.Decode(&env); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil
		}
		return fmt.Errorf("failed to decode environment: %w", err)
	}

	setIfPresent(&c.Browserbase.APIKey, env.APIKey)
	setIfPresent(&c.Browserbase.ProjectID, env.ProjectID)
	setIfPresent(&c.Browserbase.BaseURL, env.BaseURL)
	setIfPresent(&c.Browserbase.Context.ID, env.ContextID)
	setIfPresent(&c.Artifacts.Backend, env.ArtifactBackend)
	setIfPresent(&c.Artifacts.RedisAddr, env.RedisAddr)
	setIfPresent(&c.Logging.Verbosity, env.Verbosity)
	return nil
}

func setIfPresent(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate validates the configuration and fills defaults left empty by a
// config file. Credentials are not required here: a missing key only fails
// session creation.
func (c *Config) Validate() error {
	if c.Browserbase.BaseURL == "" {
		c.Browserbase.BaseURL = DefaultBaseURL
	}
	c.Browserbase.BaseURL = strings.TrimRight(c.Browserbase.BaseURL, "/")

	vp := &c.Browserbase.Viewport
	if vp.Width == 0 {
		vp.Width = DefaultViewportWidth
	}
	if vp.Height == 0 {
		vp.Height = DefaultViewportHeight
	}
	if vp.Width < 100 || vp.Width > 5000 {
		return fmt.Errorf("viewport width must be between 100 and 5000 pixels")
	}
	if vp.Height < 100 || vp.Height > 5000 {
		return fmt.Errorf("viewport height must be between 100 and 5000 pixels")
	}

	for i, ck := range c.Browserbase.Cookies {
		if ck.Name == "" {
			return fmt.Errorf("cookie %d: name is required", i)
		}
		if ck.URL == "" && ck.Domain == "" {
			return fmt.Errorf("cookie %q: url or domain is required", ck.Name)
		}
		switch ck.SameSite {
		case "", "Strict", "Lax", "None":
		default:
			return fmt.Errorf("cookie %q: invalid same_site %q (must be 'Strict', 'Lax', or 'None')", ck.Name, ck.SameSite)
		}
	}

	if c.Artifacts.Backend == "" {
		c.Artifacts.Backend = BackendMemory
	}
	switch c.Artifacts.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Artifacts.RedisAddr == "" {
			c.Artifacts.RedisAddr = defaultRedisAddr
		}
		if c.Artifacts.RedisDB < 0 {
			return fmt.Errorf("redis_db cannot be negative")
		}
	default:
		return fmt.Errorf("invalid artifact backend: %s (must be '%s' or '%s')", c.Artifacts.Backend, BackendMemory, BackendRedis)
	}
	if c.Artifacts.KeyPrefix == "" {
		c.Artifacts.KeyPrefix = defaultArtifactPrefix
	}

	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}
	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}

// HasCredentials reports whether both Browserbase credentials are configured.
func (b BrowserbaseConfig) HasCredentials() bool {
	return b.APIKey != "" && b.ProjectID != ""
}
