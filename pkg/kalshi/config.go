package kalshi

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"kalshi-explorer/pkg/confkit"
)

// Config describes how to reach the trade API and which credential to sign with.
type Config struct {
	BaseURL    string `yaml:"base_url"`
	KeyFile    string `yaml:"key_file"`
	AccessKey  string `yaml:"access_key"`
	Passphrase string `yaml:"passphrase"`

	PageSize        int `yaml:"page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
	MaxPages        int `yaml:"max_pages"`
	MarketsMaxPages int `yaml:"markets_max_pages"`

	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`

	Retry RetrySettings `yaml:"retry"`
}

// RetrySettings is the yaml form of RetryConfig.
type RetrySettings struct {
	MaxRetries        int     `yaml:"max_retries"`
	InitialBackoffRaw string  `yaml:"initial_backoff"`
	MaxBackoffRaw     string  `yaml:"max_backoff"`
	Multiplier        float64 `yaml:"multiplier"`

	InitialBackoff time.Duration `yaml:"-"`
	MaxBackoff     time.Duration `yaml:"-"`
}

// LoadConfig reads configuration from disk. A relative key_file is resolved
// against the directory of path.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open kalshi config: %w", err)
	}
	defer file.Close()
	cfg, err := LoadConfigFromReader(file)
	if err != nil {
		return nil, err
	}
	if cfg.KeyFile != "" {
		cfg.KeyFile = confkit.ResolvePath(filepath.Dir(path), cfg.KeyFile)
	}
	return cfg, nil
}

// MustLoad reads kalshi configuration from the default project location and panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/kalshi.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read kalshi config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal kalshi config: %w", err)
	}
	cfg.expandEnv()
	cfg.applyDefaults()
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expandEnv() {
	c.BaseURL = strings.TrimSpace(os.ExpandEnv(c.BaseURL))
	c.KeyFile = strings.TrimSpace(os.ExpandEnv(c.KeyFile))
	c.AccessKey = strings.TrimSpace(os.ExpandEnv(c.AccessKey))
	c.Passphrase = os.ExpandEnv(c.Passphrase)
	c.TimeoutRaw = strings.TrimSpace(os.ExpandEnv(c.TimeoutRaw))
	c.Retry.InitialBackoffRaw = strings.TrimSpace(os.ExpandEnv(c.Retry.InitialBackoffRaw))
	c.Retry.MaxBackoffRaw = strings.TrimSpace(os.ExpandEnv(c.Retry.MaxBackoffRaw))
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.MaxPageSize == 0 {
		c.MaxPageSize = MaxPageSize
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxPages == 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.MarketsMaxPages == 0 {
		c.MarketsMaxPages = DefaultMarketsMaxPages
	}
}

func (c *Config) parseDurations() error {
	var err error
	if c.Timeout, err = parsePositiveDuration("timeout", c.TimeoutRaw); err != nil {
		return err
	}
	if c.Retry.InitialBackoff, err = parsePositiveDuration("retry.initial_backoff", c.Retry.InitialBackoffRaw); err != nil {
		return err
	}
	if c.Retry.MaxBackoff, err = parsePositiveDuration("retry.max_backoff", c.Retry.MaxBackoffRaw); err != nil {
		return err
	}
	return nil
}

func parsePositiveDuration(name, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("kalshi config: invalid %s %q: %w", name, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("kalshi config: %s must be positive, got %s", name, d)
	}
	return d, nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("kalshi config: invalid base_url %q", c.BaseURL)
	}
	if c.KeyFile == "" {
		return fmt.Errorf("kalshi config: key_file is required")
	}
	if c.AccessKey == "" {
		return fmt.Errorf("kalshi config: access_key is required")
	}
	if c.MaxPageSize < 0 || c.MaxPageSize > MaxPageSize {
		return fmt.Errorf("kalshi config: max_page_size must be between 1 and %d, got %d", MaxPageSize, c.MaxPageSize)
	}
	if c.PageSize < 0 || c.PageSize > c.MaxPageSize {
		return fmt.Errorf("kalshi config: page_size must be between 1 and %d, got %d", c.MaxPageSize, c.PageSize)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("kalshi config: max_pages cannot be negative")
	}
	if c.MarketsMaxPages < 0 {
		return fmt.Errorf("kalshi config: markets_max_pages cannot be negative")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("kalshi config: retry.max_retries cannot be negative")
	}
	if c.Retry.Multiplier < 0 {
		return fmt.Errorf("kalshi config: retry.multiplier cannot be negative")
	}
	return nil
}

// RetryConfig converts the yaml retry settings.
func (c *Config) RetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     c.Retry.MaxRetries,
		InitialBackoff: c.Retry.InitialBackoff,
		MaxBackoff:     c.Retry.MaxBackoff,
		Multiplier:     c.Retry.Multiplier,
	}
}

// ClientOptions returns the client options implied by the configuration.
func (c *Config) ClientOptions() []ClientOption {
	return []ClientOption{
		WithBaseURL(c.BaseURL),
		WithTimeout(c.Timeout),
		WithMaxPageSize(c.MaxPageSize),
		WithPageSize(c.PageSize),
		WithMaxPages(c.MaxPages),
		WithMarketsMaxPages(c.MarketsMaxPages),
		WithRetry(c.RetryConfig()),
	}
}

// BuildClient loads the credential and constructs a Client. A configured
// passphrase takes precedence; otherwise fallback is consulted, and only for
// encrypted keys.
func (c *Config) BuildClient(fallback PassphraseFunc, opts ...ClientOption) (*Client, error) {
	passphrase := fallback
	if c.Passphrase != "" {
		passphrase = StaticPassphrase(c.Passphrase)
	}
	cred, err := LoadCredential(c.KeyFile, c.AccessKey, passphrase)
	if err != nil {
		return nil, err
	}
	return NewClient(cred, append(c.ClientOptions(), opts...)...)
}
