// internal/config/config_test.go
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromBytes(t *testing.T) {
	configYAML := `
name: "bytes_test"
navigation:
  passes: 3
  poll_interval: 50ms
browser:
  api_expression: "window.viewer.api"
  viewer_selector: "#viewer"
`

	cfg, err := LoadFromBytes([]byte(configYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}

	if cfg.Name != "bytes_test" {
		t.Errorf("Expected name 'bytes_test', got %q", cfg.Name)
	}
	if cfg.Navigation.Passes != 3 {
		t.Errorf("Expected 3 passes, got %d", cfg.Navigation.Passes)
	}
	if cfg.Navigation.PollAttempts != DefaultPollAttempts {
		t.Errorf("Expected default poll attempts %d, got %d", DefaultPollAttempts, cfg.Navigation.PollAttempts)
	}
	if cfg.Browser.APIExpression != "window.viewer.api" {
		t.Errorf("Expected api expression to be kept, got %q", cfg.Browser.APIExpression)
	}
	if cfg.Browser.BootstrapScript != DefaultBootstrapScript {
		t.Error("Expected default bootstrap script to be applied")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bootstrap.js"), []byte("window.custom = true;"), 0o644); err != nil {
		t.Fatalf("failed to write bootstrap: %v", err)
	}
	path := filepath.Join(dir, "docnav.yaml")
	configYAML := `
name: "file_test"
browser:
  bootstrap_file: bootstrap.js
`
	if err := os.WriteFile(path, []byte(configYAML), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Browser.BootstrapScript != "window.custom = true;" {
		t.Errorf("Expected bootstrap file to be resolved relative to config, got %q", cfg.Browser.BootstrapScript)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := LoadFromFile(""); err == nil {
		t.Error("Expected error for empty filename")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to validate, got %v", err)
	}

	d, err := cfg.Durations()
	if err != nil {
		t.Fatalf("Durations failed: %v", err)
	}
	if d.PassPause.Milliseconds() != 300 {
		t.Errorf("Expected 300ms pass pause, got %v", d.PassPause)
	}
	if d.PollInterval.Milliseconds() != 160 {
		t.Errorf("Expected 160ms poll interval, got %v", d.PollInterval)
	}
}

func TestGenerateTemplate(t *testing.T) {
	tests := []struct {
		templateType string
		wantName     string
	}{
		{"basic", "basic"},
		{"", "basic"},
		{"adobe", "adobe_embed"},
		{"ADOBE", "adobe_embed"},
		{"server", "docnav_server"},
	}

	for _, tt := range tests {
		t.Run(tt.templateType, func(t *testing.T) {
			cfg := GenerateTemplate(tt.templateType)
			if cfg.Name != tt.wantName {
				t.Errorf("Expected name %q, got %q", tt.wantName, cfg.Name)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Expected template to validate, got %v", err)
			}
		})
	}

	adobe := GenerateTemplate("adobe")
	if !strings.Contains(adobe.Browser.APIExpression, "getAPIs") {
		t.Errorf("Expected adobe template to call getAPIs, got %q", adobe.Browser.APIExpression)
	}
}

func TestSaveToWriter_RoundTrip(t *testing.T) {
	original := GenerateTemplate("server")

	var buf bytes.Buffer
	if err := SaveToWriter(&original, &buf); err != nil {
		t.Fatalf("SaveToWriter failed: %v", err)
	}

	loaded, err := LoadFromReader(&buf)
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	if loaded.Server.RateLimit != original.Server.RateLimit || !loaded.Metrics.Enabled {
		t.Errorf("Expected server settings to survive, got %+v", loaded.Server)
	}
}

func TestExpandEnvironmentVariables(t *testing.T) {
	t.Setenv("DOCNAV_TEST_EXPR", "window.sdk")
	t.Setenv("DOCNAV_TEST_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set", "${DOCNAV_TEST_EXPR}", "window.sdk"},
		{"default_used", "${DOCNAV_TEST_UNSET:-fallback}", "fallback"},
		{"empty_uses_default", "${DOCNAV_TEST_EMPTY:-fallback}", "fallback"},
		{"unset_no_default", "x${DOCNAV_TEST_UNSET}y", "xy"},
		{"plain", "no variables", "no variables"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandEnvironmentVariables(tt.input); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
