// Package config loads and saves aget's TOML config file (spec.md §6,
// SPEC_FULL.md §4.M). Adapted from the teacher's internal/core/config/
// config.go: ConfigDir/ConfigPath/Load/Save/expandPath are kept in
// shape, but the storage format moves from YAML to TOML and the field
// set is replaced with aget's own (headers, concurrency, chunk_size,
// timeout, dns_timeout, retries, retry_wait) per spec.md §6's explicit
// "Config file (optional, TOML at $HOME/.config/aget/config)".
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	ConfigFileName = "config"
	AppDirName     = "aget"
)

// HeaderPair is one "Name: Value" default header entry.
type HeaderPair struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

// Config is the recognized set of options in the TOML config file
// (spec.md §6).
type Config struct {
	Headers     []HeaderPair `toml:"headers,omitempty"`
	Concurrency int          `toml:"concurrency,omitempty"`
	ChunkSize   string       `toml:"chunk_size,omitempty"`
	Timeout     int          `toml:"timeout,omitempty"`
	DNSTimeout  int          `toml:"dns_timeout,omitempty"`
	Retries     int          `toml:"retries,omitempty"`
	RetryWait   int          `toml:"retry_wait,omitempty"`
}

// ConfigDir returns ~/.config/aget (spec.md §6 gives no Windows-
// specific path for aget, unlike the teacher's vget; aget's config
// lives only at $HOME/.config/aget per the spec).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the config file, e.g.
// ~/.config/aget/config.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// Exists reports whether the config file is present.
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the TOML config file. A missing file is not an error at
// this layer: it returns (nil, nil), matching spec.md §6's framing
// that the config file is optional and CLI defaults otherwise apply.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return nil, nil
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// DefaultConfig returns the built-in defaults applied when neither the
// config file nor a CLI flag set a value (spec.md §6).
func DefaultConfig() *Config {
	return &Config{
		Concurrency: 10,
		ChunkSize:   "500k",
		Timeout:     60,
		DNSTimeout:  10,
		Retries:     5,
		RetryWait:   0,
	}
}

// Save writes cfg as TOML, creating the config directory if needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Init writes a fresh config file with default values, used by
// `aget init` (spec.md §6; the teacher's interactive wizard.go is
// dropped — see DESIGN.md — so this mirrors only config.Init()'s
// non-interactive branch).
func Init() error {
	if Exists() {
		path, _ := ConfigPath()
		return fmt.Errorf("%s already exists", path)
	}
	return Save(DefaultConfig())
}

// LoadOrDefault loads the config file if present, otherwise returns
// built-in defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil || cfg == nil {
		return DefaultConfig()
	}
	return cfg
}

// expandPath expands a leading "~" to the user's home directory,
// kept from the teacher's config.go verbatim in behavior.
func expandPath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~") {
		if len(path) == 1 || path[1] == '/' || path[1] == '\\' {
			home, err := os.UserHomeDir()
			if err == nil {
				subPath := path[1:]
				if len(subPath) > 0 && (subPath[0] == '/' || subPath[0] == '\\') {
					subPath = subPath[1:]
				}
				return filepath.Join(home, subPath)
			}
		}
	}
	return path
}

// ExpandPath is the exported form used when resolving --out paths that
// may carry a leading "~".
func ExpandPath(path string) string { return expandPath(path) }

// DefaultUserAgent is the header spec.md §6 requires unless the caller
// supplies their own: "User-Agent: aget/<version>".
func DefaultUserAgent(version string) string {
	return "aget/" + version
}

// MergeHeaders applies cfg's default headers, then overrides with any
// value explicitly set via CLI flags, matching spec.md §6's precedence
// ("CLI overrides config; defaults apply last").
func MergeHeaders(cfg *Config, cliHeaders map[string]string, version string) map[string]string {
	merged := map[string]string{"User-Agent": DefaultUserAgent(version)}
	if cfg != nil {
		for _, h := range cfg.Headers {
			merged[h.Name] = h.Value
		}
	}
	for k, v := range cliHeaders {
		merged[k] = v
	}
	return merged
}
