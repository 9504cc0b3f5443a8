// internal/config/validation.go - validation with detailed error messages
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/valpere/docnav/internal/utils"
)

// ValidationError represents a detailed validation error
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %s (got %q)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings"`
}

func (r *ValidationResult) addError(field, value, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Value: value, Message: message})
}

// Validate checks the configuration and returns every problem found
func (c *Config) Validate() error {
	result := c.ValidateDetailed()
	if len(result.Errors) > 0 {
		return formatValidationError(result)
	}
	return nil
}

// ValidateDetailed returns errors and warnings without failing fast
func (c *Config) ValidateDetailed() *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   make([]ValidationError, 0),
		Warnings: make([]string, 0),
	}

	c.validateNavigation(result)
	c.validateBrowser(result)
	c.validateLogging(result)
	c.validateServer(result)

	return result
}

func (c *Config) validateNavigation(result *ValidationResult) {
	nav := c.Navigation
	if nav.Passes < 1 || nav.Passes > 10 {
		result.addError("navigation.passes", fmt.Sprint(nav.Passes), "must be between 1 and 10")
	}
	if nav.PollAttempts < 1 || nav.PollAttempts > 100 {
		result.addError("navigation.poll_attempts", fmt.Sprint(nav.PollAttempts), "must be between 1 and 100")
	}
	if nav.QueueSize < 1 {
		result.addError("navigation.queue_size", fmt.Sprint(nav.QueueSize), "must be positive")
	}
	validateDuration(result, "navigation.pass_pause", nav.PassPause)
	if d := validateDuration(result, "navigation.poll_interval", nav.PollInterval); d > 0 {
		worst := time.Duration(nav.Passes*nav.PollAttempts*9) * d
		if worst > 5*time.Minute {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("worst-case resolution takes %s; consider fewer polls", worst))
		}
	}
}

func (c *Config) validateBrowser(result *ValidationResult) {
	b := c.Browser
	if b.ViewportWidth <= 0 || b.ViewportHeight <= 0 {
		result.addError("browser.viewport", fmt.Sprintf("%dx%d", b.ViewportWidth, b.ViewportHeight), "must be positive")
	}
	if strings.TrimSpace(b.APIExpression) == "" {
		result.addError("browser.api_expression", "", "is required")
	}
	if strings.TrimSpace(b.ViewerSelector) == "" {
		result.addError("browser.viewer_selector", "", "is required")
	}
	if b.BootstrapScript == "" && b.BootstrapFile == "" {
		result.Warnings = append(result.Warnings, "no bootstrap script: readiness relies on browser.rendered_expression")
	}
	validateDuration(result, "browser.timeout", b.Timeout)
	validateDuration(result, "browser.ready_timeout", b.ReadyTimeout)
	if d := validateDuration(result, "browser.probe_interval", b.ProbeInterval); d == 0 && b.ProbeInterval != "" {
		result.addError("browser.probe_interval", b.ProbeInterval, "must be greater than zero")
	}
}

func (c *Config) validateLogging(result *ValidationResult) {
	if _, err := utils.ParseLevel(c.Logging.Level); err != nil {
		result.addError("logging.level", c.Logging.Level, "must be debug, info, warn or error")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		result.addError("logging.format", c.Logging.Format, "must be json or console")
	}
}

func (c *Config) validateServer(result *ValidationResult) {
	s := c.Server
	if s.RateLimit < 0 {
		result.addError("server.rate_limit", fmt.Sprint(s.RateLimit), "cannot be negative")
	}
	if s.Burst < 1 {
		result.addError("server.burst", fmt.Sprint(s.Burst), "must be positive")
	}
	if s.MaxSessions < 1 {
		result.addError("server.max_sessions", fmt.Sprint(s.MaxSessions), "must be positive")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		result.addError("metrics.path", c.Metrics.Path, "must start with /")
	}
}

// validateDuration parses value and records an error if it is malformed
// or negative. It returns the parsed duration, or 0.
func validateDuration(result *ValidationResult, field, value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		result.addError(field, value, "must be a duration such as 250ms or 2s")
		return 0
	}
	if d < 0 {
		result.addError(field, value, "cannot be negative")
		return 0
	}
	return d
}

func formatValidationError(result *ValidationResult) error {
	msgs := make([]string, len(result.Errors))
	for i, e := range result.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}
