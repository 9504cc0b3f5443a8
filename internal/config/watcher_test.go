// internal/config/watcher_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigWatcher_ReloadsValidChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docnav.yaml")
	if err := os.WriteFile(path, []byte("name: first\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cw, err := NewConfigWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewConfigWatcher failed: %v", err)
	}
	defer cw.Close()

	changes := make(chan *Config, 4)
	cw.OnChange(func(cfg *Config) { changes <- cfg })

	// An invalid revision is skipped
	if err := os.WriteFile(path, []byte("navigation:\n  passes: 50\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	select {
	case cfg := <-changes:
		t.Fatalf("Expected invalid revision to be skipped, got %q", cfg.Name)
	case <-time.After(5 * reloadDebounce):
	}

	if err := os.WriteFile(path, []byte("name: second\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	select {
	case cfg := <-changes:
		if cfg.Name != "second" {
			t.Errorf("Expected reloaded name 'second', got %q", cfg.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for reload")
	}
}

func TestConfigWatcher_CloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docnav.yaml")
	if err := os.WriteFile(path, []byte("name: x\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cw, err := NewConfigWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewConfigWatcher failed: %v", err)
	}
	if err := cw.Close(); err != nil {
		t.Errorf("Unexpected close error: %v", err)
	}
	if err := cw.Close(); err != nil {
		t.Errorf("Expected second close to be a no-op, got %v", err)
	}
}
