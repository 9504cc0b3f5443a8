// internal/config/config.go
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/valpere/docnav/internal/utils"
)

// Default values applied to missing fields
const (
	DefaultPasses        = 2
	DefaultPassPause     = "300ms"
	DefaultPollAttempts  = 10
	DefaultPollInterval  = "160ms"
	DefaultQueueSize     = 16
	DefaultAPIExpression = "window.docnavAPI"
	DefaultReadyTimeout  = "30s"
	DefaultProbeInterval = "250ms"
)

// DefaultBootstrapScript relays docnav:* DOM events to the Go side. Viewer
// pages (or SDK-specific bootstrap files) dispatch these events when the
// SDK yields its API object and when rendering completes.
const DefaultBootstrapScript = `(function () {
  var send = function (kind) {
    try { window.docnavSignal(kind); } catch (e) {}
  };
  window.addEventListener('docnav:api', function () { send('api'); });
  window.addEventListener('docnav:rendered', function () { send('rendered'); });
})();`

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration filename cannot be empty")
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", filename)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	cfg, err := LoadFromBytes(data)
	if err != nil {
		return nil, err
	}

	// bootstrap_file is resolved relative to the configuration file
	if cfg.Browser.BootstrapFile != "" && cfg.Browser.BootstrapScript == "" {
		path := cfg.Browser.BootstrapFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(filename), path)
		}
		script, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read bootstrap file: %w", err)
		}
		cfg.Browser.BootstrapScript = string(script)
	}

	return cfg, nil
}

// LoadFromBytes loads configuration from YAML bytes
func LoadFromBytes(data []byte) (*Config, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("configuration data cannot be empty")
	}

	expanded := expandEnvironmentVariables(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from an io.Reader
func LoadFromReader(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from reader: %w", err)
	}

	return LoadFromBytes(data)
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{Name: "docnav"}
	applyDefaults(cfg)
	return cfg
}

// SaveToWriter saves configuration to an io.Writer
func SaveToWriter(cfg *Config, writer io.Writer) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if writer == nil {
		return fmt.Errorf("writer cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}

	return nil
}

// GenerateTemplate generates a template configuration. "adobe" wires the
// bootstrap for Adobe PDF Embed style viewers; anything else yields the
// generic template.
func GenerateTemplate(templateType string) Config {
	cfg := Default()
	switch strings.ToLower(templateType) {
	case "adobe":
		cfg.Name = "adobe_embed"
		cfg.Browser.APIExpression = "window.adobeViewer && window.adobeViewer.getAPIs()"
		cfg.Browser.BootstrapScript = adobeBootstrapScript
		cfg.Browser.ViewerSelector = "#adobe-dc-view"
	case "server":
		cfg.Name = "docnav_server"
		cfg.Metrics.Enabled = true
		cfg.Server.RateLimit = 10
		cfg.Server.Burst = 20
	default:
		cfg.Name = "basic"
	}
	return *cfg
}

const adobeBootstrapScript = `(function () {
  var send = function (kind) {
    try { window.docnavSignal(kind); } catch (e) {}
  };
  document.addEventListener('adobe_dc_view_sdk.ready', function () {
    var poll = setInterval(function () {
      if (window.adobeViewer) {
        clearInterval(poll);
        send('api');
      }
    }, 100);
  });
  window.addEventListener('docnav:rendered', function () { send('rendered'); });
})();`

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandEnvironmentVariables substitutes ${VAR} and ${VAR:-default}
func expandEnvironmentVariables(content string) string {
	return envPattern.ReplaceAllStringFunc(content, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if value, ok := os.LookupEnv(parts[1]); ok && value != "" {
			return value
		}
		return parts[3]
	})
}

// applyDefaults applies default values to the configuration
func applyDefaults(cfg *Config) {
	nav := &cfg.Navigation
	if nav.Passes == 0 {
		nav.Passes = DefaultPasses
	}
	if nav.PassPause == "" {
		nav.PassPause = DefaultPassPause
	}
	if nav.PollAttempts == 0 {
		nav.PollAttempts = DefaultPollAttempts
	}
	if nav.PollInterval == "" {
		nav.PollInterval = DefaultPollInterval
	}
	if nav.QueueSize == 0 {
		nav.QueueSize = DefaultQueueSize
	}

	b := &cfg.Browser
	if b.Timeout == "" {
		b.Timeout = "2m"
	}
	if b.ViewportWidth == 0 {
		b.ViewportWidth = 1920
	}
	if b.ViewportHeight == 0 {
		b.ViewportHeight = 1080
	}
	if b.APIExpression == "" {
		b.APIExpression = DefaultAPIExpression
	}
	if b.BootstrapScript == "" && b.BootstrapFile == "" {
		b.BootstrapScript = DefaultBootstrapScript
	}
	if b.ViewerSelector == "" {
		b.ViewerSelector = "body"
	}
	if b.ReadyTimeout == "" {
		b.ReadyTimeout = DefaultReadyTimeout
	}
	if b.ProbeInterval == "" {
		b.ProbeInterval = DefaultProbeInterval
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = utils.DefaultLoggingConfig().Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = utils.DefaultLoggingConfig().Format
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "docnav"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Burst == 0 {
		cfg.Server.Burst = 1
	}
	if cfg.Server.MaxSessions == 0 {
		cfg.Server.MaxSessions = 4
	}
}

// Durations holds the parsed forms of the configuration's duration strings
type Durations struct {
	PassPause      time.Duration
	PollInterval   time.Duration
	BrowserTimeout time.Duration
	ReadyTimeout   time.Duration
	ProbeInterval  time.Duration
}

// Durations parses every duration field
func (c *Config) Durations() (Durations, error) {
	var d Durations
	fields := []struct {
		path  string
		value string
		out   *time.Duration
	}{
		{"navigation.pass_pause", c.Navigation.PassPause, &d.PassPause},
		{"navigation.poll_interval", c.Navigation.PollInterval, &d.PollInterval},
		{"browser.timeout", c.Browser.Timeout, &d.BrowserTimeout},
		{"browser.ready_timeout", c.Browser.ReadyTimeout, &d.ReadyTimeout},
		{"browser.probe_interval", c.Browser.ProbeInterval, &d.ProbeInterval},
	}
	for _, f := range fields {
		v, err := time.ParseDuration(f.value)
		if err != nil {
			return Durations{}, ValidationError{Field: f.path, Value: f.value, Message: "invalid duration"}
		}
		*f.out = v
	}
	return d, nil
}
