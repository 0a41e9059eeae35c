// Package config loads, normalizes and validates narou2epub settings.
//
// Settings come from an optional TOML file; a missing file yields Default().
// Command line flags override individual fields after loading.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Paths contains directory configuration.
type Paths struct {
	CacheDir  string `toml:"cache_dir"`
	OutputDir string `toml:"output_dir"`
}

// Network contains request, retry and crawl pacing settings.
type Network struct {
	UserAgent          string `toml:"user_agent"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	MaxAttempts        int    `toml:"max_attempts"`
	BackoffSeconds     int    `toml:"backoff_seconds"`
	DownloadIntervalMS int    `toml:"download_interval_ms"`
	WaitSteps          int    `toml:"wait_steps"`
	StepsWaitSeconds   int    `toml:"steps_wait_seconds"`
	APIIntervalSeconds int    `toml:"api_interval_seconds"`
	Renderer           string `toml:"renderer"`
}

// Logging contains logger settings.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the complete configuration.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Network Network `toml:"network"`
	Logging Logging `toml:"logging"`
}

const (
	RendererHTTP   = "http"
	RendererChrome = "chrome"
)

const (
	defaultCacheDir           = "~/.cache/narou2epub"
	defaultOutputDir          = "output"
	defaultUserAgent          = "narou2epub/1.0"
	defaultTimeoutSeconds     = 30
	defaultMaxAttempts        = 3
	defaultBackoffSeconds     = 2
	defaultDownloadIntervalMS = 1100 // robots.txt Crawl-delay: 1
	defaultWaitSteps          = 10
	defaultStepsWaitSeconds   = 5
	defaultAPIIntervalSeconds = 3
	defaultLogLevel           = "info"
	defaultLogFormat          = "text"
)

// DefaultPath is the configuration file consulted when --config is not given.
const DefaultPath = "~/.config/narou2epub/config.toml"

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir:  defaultCacheDir,
			OutputDir: defaultOutputDir,
		},
		Network: Network{
			UserAgent:          defaultUserAgent,
			TimeoutSeconds:     defaultTimeoutSeconds,
			MaxAttempts:        defaultMaxAttempts,
			BackoffSeconds:     defaultBackoffSeconds,
			DownloadIntervalMS: defaultDownloadIntervalMS,
			WaitSteps:          defaultWaitSteps,
			StepsWaitSeconds:   defaultStepsWaitSeconds,
			APIIntervalSeconds: defaultAPIIntervalSeconds,
			Renderer:           RendererHTTP,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// Load reads the TOML file at path on top of Default(). A missing file is not
// an error; the returned bool reports whether a file was read.
func Load(path string) (*Config, bool, error) {
	cfg := Default()
	found := false

	if strings.TrimSpace(path) != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return nil, false, err
		}
		data, err := os.ReadFile(expanded)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, false, fmt.Errorf("parse config %s: %w", expanded, err)
			}
			found = true
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, false, fmt.Errorf("read config %s: %w", expanded, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return &cfg, found, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.CacheDir, err = ExpandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("cache_dir: %w", err)
	}
	if c.Paths.OutputDir, err = ExpandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("output_dir: %w", err)
	}
	c.Network.UserAgent = strings.TrimSpace(c.Network.UserAgent)
	if c.Network.UserAgent == "" {
		c.Network.UserAgent = defaultUserAgent
	}
	c.Network.Renderer = strings.ToLower(strings.TrimSpace(c.Network.Renderer))
	if c.Network.Renderer == "" {
		c.Network.Renderer = RendererHTTP
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		return errors.New("paths.cache_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must not be empty")
	}
	n := c.Network
	if n.TimeoutSeconds <= 0 {
		return fmt.Errorf("network.timeout_seconds must be positive, got %d", n.TimeoutSeconds)
	}
	if n.MaxAttempts <= 0 {
		return fmt.Errorf("network.max_attempts must be positive, got %d", n.MaxAttempts)
	}
	if n.BackoffSeconds < 0 || n.DownloadIntervalMS < 0 || n.WaitSteps < 0 || n.StepsWaitSeconds < 0 || n.APIIntervalSeconds < 0 {
		return errors.New("network intervals must not be negative")
	}
	switch n.Renderer {
	case RendererHTTP, RendererChrome:
	default:
		return fmt.Errorf("network.renderer: unsupported value %q", n.Renderer)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

// Timeout is the per-request network timeout.
func (n Network) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// Backoff is the wait before the second attempt; later waits double.
func (n Network) Backoff() time.Duration {
	return time.Duration(n.BackoffSeconds) * time.Second
}

// DownloadInterval is the minimum gap between page downloads.
func (n Network) DownloadInterval() time.Duration {
	return time.Duration(n.DownloadIntervalMS) * time.Millisecond
}

// StepsWait is the longer pause inserted every WaitSteps downloads.
func (n Network) StepsWait() time.Duration {
	return time.Duration(n.StepsWaitSeconds) * time.Second
}

// APIInterval is the minimum gap between API requests.
func (n Network) APIInterval() time.Duration {
	return time.Duration(n.APIIntervalSeconds) * time.Second
}

// CacheDBPath is the SQLite file inside the cache directory.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.Paths.CacheDir, "cache.db")
}

// ExpandPath expands a leading "~" to the user's home directory.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
