package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"fenixrpa/internal/decision"
)

// DefaultPath is where the CLI looks for configuration.
const DefaultPath = ".fenix/config.yaml"

// Config holds all fenixrpa configuration.
type Config struct {
	// Target portal and credentials
	Portal PortalConfig `yaml:"portal"`

	// Chrome launch / attach settings
	Browser BrowserConfig `yaml:"browser"`

	// Every UI wait is bounded by one of these
	Timeouts TimeoutsConfig `yaml:"timeouts"`

	// Retry budgets
	Retry RetryConfig `yaml:"retry"`

	// Report header defaults and narrative templates
	Form FormConfig `yaml:"form"`

	// Business-rule tables
	Decision DecisionConfig `yaml:"decision"`

	// Source table shape
	Data DataConfig `yaml:"data"`

	// Run journal
	Journal JournalConfig `yaml:"journal"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// PortalConfig identifies the single external surface the runs drive.
type PortalConfig struct {
	BaseURL string `yaml:"base_url"`
	// LoginMode is interactive, credentials, or auto (credentials when a
	// username and password are both present).
	LoginMode string `yaml:"login_mode"`
	Username  string `yaml:"username"`
	// Password is never persisted; it only arrives through FENIX_PASSWORD
	// or the CLI.
	Password string `yaml:"-"`
}

// JournalConfig configures the SQLite run journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			BaseURL:   "https://fenixflorestal.suzanonet.com.br/",
			LoginMode: "auto",
		},
		Browser:  DefaultBrowserConfig(),
		Timeouts: DefaultTimeouts(),
		Retry: RetryConfig{
			BindRetries:     1,
			RetryWaitFactor: 2,
		},
		Form:     DefaultFormConfig(),
		Decision: DefaultDecisionConfig(),
		Data:     DefaultDataConfig(),
		Journal: JournalConfig{
			Enabled: true,
			Path:    ".fenix/journal.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults if config file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FENIX_BASE_URL"); v != "" {
		c.Portal.BaseURL = v
	}
	if v := os.Getenv("FENIX_USER"); v != "" {
		c.Portal.Username = v
	}
	if v := os.Getenv("FENIX_PASSWORD"); v != "" {
		c.Portal.Password = v
	}
	if v := os.Getenv("FENIX_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv("FENIX_BROWSER_BIN"); v != "" {
		c.Browser.Bin = v
	}
	if v := os.Getenv("FENIX_DEBUGGER_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
	if v := os.Getenv("FENIX_JOURNAL"); v != "" {
		c.Journal.Path = v
	}
}

// UseCredentials reports whether login should be programmatic.
func (c *Config) UseCredentials() bool {
	switch strings.ToLower(c.Portal.LoginMode) {
	case "credentials":
		return true
	case "interactive":
		return false
	}
	return c.Portal.Username != "" && c.Portal.Password != ""
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Portal.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid portal base_url %q", c.Portal.BaseURL)
	}

	switch strings.ToLower(c.Portal.LoginMode) {
	case "", "auto", "interactive":
	case "credentials":
		if c.Portal.Username == "" || c.Portal.Password == "" {
			return fmt.Errorf("login_mode credentials requires FENIX_USER and FENIX_PASSWORD")
		}
	default:
		return fmt.Errorf("invalid login_mode %q (valid: auto, interactive, credentials)", c.Portal.LoginMode)
	}

	if _, err := decision.ParseIncidenceUnit(c.Decision.IncidenceUnit); err != nil {
		return err
	}
	if c.Retry.BindRetries < 0 {
		return fmt.Errorf("retry.bind_retries must be >= 0")
	}
	if strings.TrimSpace(c.Data.FlagYes) == "" || strings.TrimSpace(c.Data.FlagNo) == "" {
		return fmt.Errorf("data.flag_yes and data.flag_no must be set")
	}
	switch c.Data.GroupBy {
	case "", "nucleus", "property":
	default:
		return fmt.Errorf("invalid data.group_by %q (valid: nucleus, property)", c.Data.GroupBy)
	}
	return nil
}
