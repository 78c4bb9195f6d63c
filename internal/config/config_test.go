package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Empty path",
			input:    "",
			expected: "",
		},
		{
			name:     "Absolute path",
			input:    "/absolute/path",
			expected: "/absolute/path",
		},
		{
			name:     "Relative path",
			input:    "relative/path",
			expected: "relative/path",
		},
		{
			name:     "Home directory only",
			input:    "~",
			expected: home,
		},
		{
			name:     "Home directory with forward slash",
			input:    "~/Downloads",
			expected: filepath.Join(home, "Downloads"),
		},
		{
			name:     "Home directory with backslash (simulated)",
			input:    `~\Downloads`,
			expected: filepath.Join(home, "Downloads"),
		},
		{
			name:     "Invalid tilde use (middle)",
			input:    "/path/~/test",
			expected: "/path/~/test",
		},
		{
			name:     "Invalid tilde use (no separator)",
			input:    "~user",
			expected: "~user", // We don't support ~user expansion currently
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandPath(tt.input)
			if got != tt.expected {
				t.Errorf("expandPath(%q) = %q; want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestConfigPathUnderHomeConfigAget(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatal(err)
	}

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath: %v", err)
	}
	want := filepath.Join(home, ".config", "aget", "config")
	if path != want {
		t.Errorf("ConfigPath() = %q; want %q", path, want)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for missing file", err)
	}
	if cfg != nil {
		t.Fatalf("Load() = %+v, want nil for missing file", cfg)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	want := &Config{
		Headers:     []HeaderPair{{Name: "X-Test", Value: "1"}},
		Concurrency: 20,
		ChunkSize:   "50m",
		Timeout:     90,
		DNSTimeout:  15,
		Retries:     3,
		RetryWait:   5,
	}
	if err := Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("Load() = nil after Save")
	}
	if got.Concurrency != want.Concurrency || got.ChunkSize != want.ChunkSize ||
		got.Timeout != want.Timeout || got.DNSTimeout != want.DNSTimeout ||
		got.Retries != want.Retries || got.RetryWait != want.RetryWait {
		t.Fatalf("round-tripped config = %+v, want %+v", got, want)
	}
	if len(got.Headers) != 1 || got.Headers[0].Name != "X-Test" || got.Headers[0].Value != "1" {
		t.Fatalf("round-tripped headers = %+v", got.Headers)
	}
}

func TestInitRefusesWhenConfigExists(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := Init(); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	if err := Init(); err == nil {
		t.Fatal("second Init should error when config already exists")
	}
}

func TestLoadOrDefaultFallsBackToDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := LoadOrDefault()
	def := DefaultConfig()
	if cfg.Concurrency != def.Concurrency || cfg.ChunkSize != def.ChunkSize {
		t.Fatalf("LoadOrDefault() = %+v, want defaults %+v", cfg, def)
	}
}

func TestMergeHeadersPrecedenceCLIOverridesConfigOverridesDefault(t *testing.T) {
	cfg := &Config{Headers: []HeaderPair{{Name: "User-Agent", Value: "custom/1.0"}, {Name: "X-From-Config", Value: "yes"}}}

	merged := MergeHeaders(cfg, map[string]string{"X-From-Config": "overridden"}, "0.1.0")

	if merged["User-Agent"] != "custom/1.0" {
		t.Errorf("User-Agent = %q, want config value to override built-in default", merged["User-Agent"])
	}
	if merged["X-From-Config"] != "overridden" {
		t.Errorf("X-From-Config = %q, want CLI value to win", merged["X-From-Config"])
	}
}

func TestMergeHeadersDefaultUserAgentWhenUnset(t *testing.T) {
	merged := MergeHeaders(nil, nil, "0.1.0")
	if merged["User-Agent"] != "aget/0.1.0" {
		t.Errorf("User-Agent = %q, want default aget/0.1.0", merged["User-Agent"])
	}
}
