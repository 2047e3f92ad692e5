package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":8787" {
		t.Errorf("listen = %q, want :8787", cfg.Listen)
	}
	if cfg.Cache.Capacity != 1000 {
		t.Errorf("cache capacity = %d, want 1000", cfg.Cache.Capacity)
	}
	if cfg.Providers == nil {
		t.Error("providers map not initialized")
	}
}

func TestLoadConfigParsesProviders(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
listen = ":9000"
storage_dir = '` + dir + `'

[cache]
capacity = 50
sweep_interval = "1m"

[analytics]
enabled = true
db_path = '` + filepath.Join(dir, "custom.db") + `'

[enrichment]
url = "http://localhost:9090/enrich"
timeout = "3s"

[providers.ddg]
type = 'duckduckgo'
priority = 5

[providers.brave]
type = 'brave'
enabled = false
timeout = "8s"
[providers.brave.config]
api_key = 'k'
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Listen != ":9000" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.Cache.Capacity != 50 {
		t.Errorf("cache capacity = %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.SweepInterval.Duration != time.Minute {
		t.Errorf("sweep interval = %v", cfg.Cache.SweepInterval.Duration)
	}
	if cfg.Enrichment == nil || cfg.Enrichment.URL != "http://localhost:9090/enrich" {
		t.Errorf("enrichment = %+v", cfg.Enrichment)
	}
	if cfg.Enrichment.Timeout.Duration != 3*time.Second {
		t.Errorf("enrichment timeout = %v", cfg.Enrichment.Timeout.Duration)
	}
	if cfg.AnalyticsDBPath() != filepath.Join(dir, "custom.db") {
		t.Errorf("analytics db path = %q", cfg.AnalyticsDBPath())
	}

	providerType, providerConfig, err := cfg.GetProviderConfig("brave")
	if err != nil {
		t.Fatal(err)
	}
	if providerType != "brave" {
		t.Errorf("type = %q", providerType)
	}
	if providerConfig == nil {
		t.Error("provider config missing")
	}
}

func TestProviderSpecsDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := GetDefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	disabled := false
	cfg.Providers["a"] = ProviderInfo{Type: "duckduckgo"}
	cfg.Providers["b"] = ProviderInfo{
		Type:     "brave",
		Enabled:  &disabled,
		Priority: 7,
		Timeout:  &Duration{8 * time.Second},
	}

	specs := cfg.ProviderSpecs()
	if len(specs) != 2 {
		t.Fatalf("specs len = %d", len(specs))
	}

	byName := make(map[string]int)
	for i, spec := range specs {
		byName[spec.Name] = i
	}

	a := specs[byName["a"]]
	if !a.Enabled || a.Priority != 100 || a.Timeout != 10*time.Second {
		t.Errorf("defaults not applied: %+v", a)
	}

	b := specs[byName["b"]]
	if b.Enabled || b.Priority != 7 || b.Timeout != 8*time.Second {
		t.Errorf("overrides not applied: %+v", b)
	}
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := GetDefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Listen = ":7000"
	if err := cfg.AddProvider("ddg", "duckduckgo", map[string]interface{}{"max_results": 10}); err != nil {
		t.Fatal(err)
	}

	if err := cfg.SaveConfig(path); err != nil {
		t.Fatal(err)
	}

	reloaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Listen != ":7000" {
		t.Errorf("listen = %q", reloaded.Listen)
	}
	if _, _, err := reloaded.GetProviderConfig("ddg"); err != nil {
		t.Errorf("provider lost in round trip: %v", err)
	}
}

func TestSaveTemplateConfig(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := &Config{StorageDir: dir}
	if err := cfg.SaveTemplateConfig(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), dir) {
		t.Error("template missing configured storage dir")
	}
	if !strings.Contains(string(data), "[providers.duckduckgo]") {
		t.Error("template missing provider examples")
	}
}
