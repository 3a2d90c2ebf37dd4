package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/panelwatch/internal/logtail"
)

// Config holds the dashboard settings.
type Config struct {
	RegistryDir        string
	PollInterval       time.Duration
	InactiveTimeout    time.Duration
	MaxConcurrentReads int
	MaxReadBytes       int64
	Encodings          []string
	ForceReload        time.Duration // zero disables periodic full reloads
	LogFile            string
	LogLevel           string
}

const (
	defaultConfigPath         = "~/.config/panelwatch/config.toml"
	defaultRegistryDir        = "~/.local/share/panelwatch/scripts"
	defaultLogFile            = "~/.local/state/panelwatch/panelwatch.log"
	defaultLogLevel           = "info"
	defaultPollInterval       = time.Second
	defaultInactiveTimeout    = 5 * time.Minute
	defaultMaxConcurrentReads = 8
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		RegistryDir:        mustExpand(defaultRegistryDir),
		PollInterval:       defaultPollInterval,
		InactiveTimeout:    defaultInactiveTimeout,
		MaxConcurrentReads: defaultMaxConcurrentReads,
		MaxReadBytes:       logtail.DefaultMaxReadBytes,
		Encodings:          append([]string(nil), logtail.DefaultEncodings...),
		LogFile:            mustExpand(defaultLogFile),
		LogLevel:           defaultLogLevel,
	}
}

// Load locates and parses the config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		RegistryDir        string   `toml:"registry_dir"`
		PollInterval       *float64 `toml:"poll_interval"`
		InactiveTimeout    *float64 `toml:"inactive_timeout"`
		MaxConcurrentReads *int     `toml:"max_concurrent_reads"`
		MaxReadBytes       *int64   `toml:"max_read_bytes"`
		Encodings          []string `toml:"encodings"`
		ForceReload        *float64 `toml:"force_reload"`
		LogFile            string   `toml:"log_file"`
		LogLevel           string   `toml:"log_level"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if dir := strings.TrimSpace(raw.RegistryDir); dir != "" {
		cfg.RegistryDir = mustExpand(dir)
	}
	if raw.PollInterval != nil && *raw.PollInterval > 0 {
		cfg.PollInterval = seconds(*raw.PollInterval)
	}
	if raw.InactiveTimeout != nil && *raw.InactiveTimeout > 0 {
		cfg.InactiveTimeout = time.Duration(*raw.InactiveTimeout * float64(time.Minute))
	}
	if raw.MaxConcurrentReads != nil && *raw.MaxConcurrentReads > 0 {
		cfg.MaxConcurrentReads = *raw.MaxConcurrentReads
	}
	if raw.MaxReadBytes != nil && *raw.MaxReadBytes > 0 {
		cfg.MaxReadBytes = *raw.MaxReadBytes
	}
	if raw.ForceReload != nil && *raw.ForceReload > 0 {
		cfg.ForceReload = seconds(*raw.ForceReload)
	}

	if len(raw.Encodings) > 0 {
		var encodings []string
		for _, name := range raw.Encodings {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			if !logtail.KnownEncoding(name) {
				return Config{}, fmt.Errorf("parse config: unknown encoding %q", name)
			}
			encodings = append(encodings, name)
		}
		if len(encodings) > 0 {
			cfg.Encodings = encodings
		}
	}

	if logFile := strings.TrimSpace(raw.LogFile); logFile != "" {
		cfg.LogFile = mustExpand(logFile)
	}
	if level := strings.ToLower(strings.TrimSpace(raw.LogLevel)); level != "" {
		cfg.LogLevel = level
	}

	return cfg, nil
}

// TailOptions converts the read settings for logtail.ReadFrom.
func (c Config) TailOptions() []logtail.Option {
	return []logtail.Option{
		logtail.WithMaxReadBytes(c.MaxReadBytes),
		logtail.WithEncodings(c.Encodings...),
	}
}

// DefaultPath returns the expanded default config location.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

// ExpandPath expands a leading ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
