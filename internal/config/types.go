// internal/config/types.go

// Package config provides the configuration types for docnav: resolver
// timings, browser session settings, logging, metrics and the HTTP server.
package config

import (
	"github.com/valpere/docnav/internal/utils"
)

// Config is the root configuration document
type Config struct {
	// Name identifies this configuration
	Name string `yaml:"name" json:"name"`

	// Navigation tunes the resolver's passes and verification polling
	Navigation NavigationConfig `yaml:"navigation" json:"navigation"`

	// Browser configures the Chrome session hosting the viewer
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Logging selects log level and format
	Logging utils.LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics configures Prometheus exposition
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Server configures the HTTP control surface
	Server ServerConfig `yaml:"server" json:"server"`
}

// NavigationConfig holds resolver timings. Durations are Go duration strings.
type NavigationConfig struct {
	Passes       int    `yaml:"passes" json:"passes"`
	PassPause    string `yaml:"pass_pause" json:"pass_pause"`
	PollAttempts int    `yaml:"poll_attempts" json:"poll_attempts"`
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`
	QueueSize    int    `yaml:"queue_size" json:"queue_size"`
}

// BrowserConfig defines the Chrome session that loads the viewer page
type BrowserConfig struct {
	Headless       bool   `yaml:"headless" json:"headless"`
	Timeout        string `yaml:"timeout" json:"timeout"`
	ViewportWidth  int    `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height" json:"viewport_height"`
	UserAgent      string `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	UserDataDir    string `yaml:"user_data_dir,omitempty" json:"user_data_dir,omitempty"`

	// APIExpression is a JS expression yielding the SDK API object or a
	// promise of it
	APIExpression string `yaml:"api_expression" json:"api_expression"`

	// RenderedExpression, when set, is polled as a fallback readiness
	// signal for SDKs that emit no render-complete event
	RenderedExpression string `yaml:"rendered_expression,omitempty" json:"rendered_expression,omitempty"`

	// BootstrapScript runs on every new document before the viewer loads;
	// it reports SDK events through window.docnavSignal(kind)
	BootstrapScript string `yaml:"bootstrap_script,omitempty" json:"bootstrap_script,omitempty"`
	BootstrapFile   string `yaml:"bootstrap_file,omitempty" json:"bootstrap_file,omitempty"`

	// ViewerSelector scopes the page-number input search
	ViewerSelector string `yaml:"viewer_selector" json:"viewer_selector"`

	ReadyTimeout  string `yaml:"ready_timeout" json:"ready_timeout"`
	ProbeInterval string `yaml:"probe_interval" json:"probe_interval"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
	Path      string `yaml:"path" json:"path"`
}

// ServerConfig configures the HTTP control surface
type ServerConfig struct {
	Listen      string  `yaml:"listen" json:"listen"`
	RateLimit   float64 `yaml:"rate_limit" json:"rate_limit"` // requests per second, 0 disables
	Burst       int     `yaml:"burst" json:"burst"`
	MaxSessions int     `yaml:"max_sessions" json:"max_sessions"`
}
