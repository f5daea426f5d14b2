package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var (
	osUserHomeDir = os.UserHomeDir
	osGetenv      = os.Getenv
)

const (
	userConfigDir  = ".config/unisrv"
	configFileName = "config.yaml"

	defaultAPIHost      = "api.unisrv.io"
	defaultHealthWindow = time.Second
	defaultStopTimeout  = 5 * time.Second
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIHost:      defaultAPIHost,
		LogLevel:     "info",
		HealthWindow: defaultHealthWindow,
		StopTimeout:  defaultStopTimeout,
	}
}

// Load layers the built-in defaults, the user config file and the
// UNISRV_API_HOST environment variable. The file and the variable are both
// optional.
func Load() (Config, error) {
	cfg := Default()

	path, err := userConfigPath()
	if err != nil {
		// User config is optional; fall through with defaults.
		fmt.Fprintf(os.Stderr, "Warning: could not determine user config path: %v\n", err)
	} else if _, statErr := os.Stat(path); statErr == nil {
		fileCfg, loadErr := loadConfigFromFile(path)
		if loadErr != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", path, loadErr)
		}
		cfg = merge(cfg, fileCfg)
	}

	if host := osGetenv("UNISRV_API_HOST"); host != "" {
		applyHostOverride(&cfg, host)
	}

	return cfg, nil
}

// applyHostOverride sets the API host from an override string which may carry
// an explicit scheme. An http:// scheme switches the client to plaintext.
func applyHostOverride(cfg *Config, host string) {
	switch {
	case strings.HasPrefix(host, "http://"):
		cfg.APIHost = strings.TrimPrefix(host, "http://")
		cfg.Insecure = true
	case strings.HasPrefix(host, "https://"):
		cfg.APIHost = strings.TrimPrefix(host, "https://")
		cfg.Insecure = false
	default:
		cfg.APIHost = host
	}
}

var userConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// fileConfig is the on-disk schema. Durations are YAML strings ("1s", "500ms")
// and parsed explicitly, since yaml.v3 has no native time.Duration support.
type fileConfig struct {
	APIHost      string `yaml:"apiHost"`
	Insecure     bool   `yaml:"insecure"`
	LogLevel     string `yaml:"logLevel"`
	HealthWindow string `yaml:"healthWindow"`
	StopTimeout  string `yaml:"stopTimeout"`
}

func loadConfigFromFile(filePath string) (Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Config{}, err
	}
	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg := Config{
		APIHost:  raw.APIHost,
		Insecure: raw.Insecure,
		LogLevel: raw.LogLevel,
	}
	if raw.HealthWindow != "" {
		cfg.HealthWindow, err = time.ParseDuration(raw.HealthWindow)
		if err != nil {
			return Config{}, fmt.Errorf("invalid healthWindow %q: %w", raw.HealthWindow, err)
		}
	}
	if raw.StopTimeout != "" {
		cfg.StopTimeout, err = time.ParseDuration(raw.StopTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("invalid stopTimeout %q: %w", raw.StopTimeout, err)
		}
	}
	return cfg, nil
}

// merge overlays non-zero fields of the override onto the base config.
func merge(base, override Config) Config {
	if override.APIHost != "" {
		base.APIHost = override.APIHost
	}
	if override.Insecure {
		base.Insecure = true
	}
	if override.LogLevel != "" {
		base.LogLevel = override.LogLevel
	}
	if override.HealthWindow > 0 {
		base.HealthWindow = override.HealthWindow
	}
	if override.StopTimeout > 0 {
		base.StopTimeout = override.StopTimeout
	}
	return base
}
