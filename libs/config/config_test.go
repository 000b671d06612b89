package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Name    string        `yaml:"name"`
	Port    int           `yaml:"port"`
	Nested  nestedSection `yaml:"nested"`
	Timeout time.Duration `yaml:"timeout"`
}

type nestedSection struct {
	Enabled bool   `yaml:"enabled"`
	Custom  string `yaml:"custom" env:"MY_CUSTOM_KEY"`
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("NAME", "bridge")
	t.Setenv("PORT", "9000")
	t.Setenv("NESTED_ENABLED", "true")
	t.Setenv("MY_CUSTOM_KEY", "custom-value")
	t.Setenv("TIMEOUT", "45s")

	var cfg testConfig
	if err := LoadConfig(&cfg); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "bridge" {
		t.Errorf("Name = %q, want %q", cfg.Name, "bridge")
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if !cfg.Nested.Enabled {
		t.Error("Nested.Enabled = false, want true")
	}
	if cfg.Nested.Custom != "custom-value" {
		t.Errorf("Nested.Custom = %q, want %q", cfg.Nested.Custom, "custom-value")
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Timeout)
	}
}

func TestLoadConfigFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("name: from-file\nport: 8080\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "8081")

	var cfg testConfig
	if err := LoadConfig(&cfg); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "from-file" {
		t.Errorf("Name = %q, want %q", cfg.Name, "from-file")
	}
	if cfg.Port != 8081 {
		t.Errorf("Port = %d, want env override 8081", cfg.Port)
	}
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	if err := LoadConfig(testConfig{}); err == nil {
		t.Error("expected error for non-pointer target")
	}
	if err := LoadConfig(nil); err == nil {
		t.Error("expected error for nil target")
	}
}

func TestLoadConfigInvalidValue(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	var cfg testConfig
	if err := LoadConfig(&cfg); err == nil {
		t.Error("expected parse error for invalid int")
	}
}
