package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcncl/gotyper-live/internal/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file
const (
	EnvServiceURL = "GOTYPER_LIVE_SERVICE_URL"
	EnvAddr       = "GOTYPER_LIVE_ADDR"
	EnvDebounce   = "GOTYPER_LIVE_DEBOUNCE"
)

// Config represents the complete configuration for gotyper-live
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Editor  EditorConfig  `yaml:"editor"`
	Notice  NoticeConfig  `yaml:"notice"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

// ServiceConfig locates the conversion service
type ServiceConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// EditorConfig controls how edits turn into conversion requests
type EditorConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// NoticeConfig controls the copy confirmation
type NoticeConfig struct {
	Delay time.Duration `yaml:"delay"`
}

// ServerConfig controls the web surface
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig controls logging
type LogConfig struct {
	JSON  bool `yaml:"json"`
	Debug bool `yaml:"debug"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			URL:     "http://localhost:4000/convertJson",
			Timeout: 10 * time.Second,
		},
		Editor: EditorConfig{
			Debounce: 300 * time.Millisecond,
		},
		Notice: NoticeConfig{
			Delay: 5 * time.Second,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost", "https://localhost", "http://127.0.0.1"},
		},
		Log: LogConfig{
			JSON:  false,
			Debug: false,
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError(fmt.Sprintf("failed to read config file '%s'", path), err)
	}

	cfg := NewConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigError(fmt.Sprintf("failed to parse config file '%s'", path), err)
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in current directory and parents
func FindConfigFile() string {
	configNames := []string{".gotyper-live.yml", ".gotyper-live.yaml", "gotyper-live.yml", "gotyper-live.yaml"}

	currentDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		for _, name := range configNames {
			configPath := filepath.Join(currentDir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	return ""
}

// ApplyEnv loads envFile when it exists (without overriding variables that
// are already set) and applies the GOTYPER_LIVE_* overrides
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return errors.NewConfigError(fmt.Sprintf("failed to load env file '%s'", envFile), err)
			}
		}
	}

	if v := os.Getenv(EnvServiceURL); v != "" {
		c.Service.URL = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvDebounce); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.NewConfigError(fmt.Sprintf("invalid %s '%s'", EnvDebounce, v), err)
		}
		c.Editor.Debounce = d
	}
	return nil
}

// Validate checks the values the rest of the program relies on
func (c *Config) Validate() error {
	if c.Service.URL == "" {
		return errors.WithHint(
			errors.NewConfigError("service url is empty", nil),
			"set service.url in the config file or "+EnvServiceURL,
		)
	}
	u, err := url.Parse(c.Service.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.WithHint(
			errors.NewConfigError(fmt.Sprintf("service url '%s' is not an http(s) URL", c.Service.URL), err),
			"use a URL such as http://localhost:4000/convertJson",
		)
	}
	if c.Service.Timeout < 0 {
		return errors.NewConfigError("service timeout must not be negative", nil)
	}
	if c.Editor.Debounce <= 0 {
		return errors.NewConfigError("editor debounce must be positive", nil)
	}
	if c.Notice.Delay <= 0 {
		return errors.NewConfigError("notice delay must be positive", nil)
	}
	if c.Server.Addr == "" {
		return errors.NewConfigError("server addr is empty", nil)
	}
	return nil
}

// CLIOverrides carries flag values that take precedence over the file
type CLIOverrides struct {
	ServiceURL string
	Addr       string
	Debug      bool
	JSONLogs   bool
}

// LoadConfigWithCLI resolves the effective configuration: defaults, then the
// config file (explicit path, or one found by FindConfigFile), then the
// environment, then CLI flags
func LoadConfigWithCLI(configPath string, cli CLIOverrides) (*Config, error) {
	cfg := NewConfig()

	if configPath == "" {
		configPath = FindConfigFile()
	}
	if configPath != "" {
		fileConfig, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}

	if err := cfg.ApplyEnv(".env"); err != nil {
		return nil, err
	}

	if cli.ServiceURL != "" {
		cfg.Service.URL = cli.ServiceURL
	}
	if cli.Addr != "" {
		cfg.Server.Addr = cli.Addr
	}
	// Flags can only switch these on
	if cli.Debug {
		cfg.Log.Debug = true
	}
	if cli.JSONLogs {
		cfg.Log.JSON = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
