// internal/errors/service.go - retry and user-facing error reporting
package errors

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Service retries transient operations (opening a viewer, waiting for an SDK)
// and renders failures for the command line.
type Service struct {
	retryConfig    RetryConfig
	messageHandler *MessageHandler
}

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay     time.Duration `yaml:"base_delay" json:"base_delay"`
	BackoffFactor float64       `yaml:"backoff_factor" json:"backoff_factor"`
	MaxDelay      time.Duration `yaml:"max_delay" json:"max_delay"`
}

// MessageHandler converts technical errors to user-friendly messages
type MessageHandler struct {
	showTechnical bool
}

// NewService creates a service with the default retry policy
func NewService() *Service {
	return &Service{
		retryConfig: RetryConfig{
			MaxRetries:    2,
			BaseDelay:     500 * time.Millisecond,
			BackoffFactor: 2.0,
			MaxDelay:      10 * time.Second,
		},
		messageHandler: &MessageHandler{showTechnical: false},
	}
}

// WithVerbose enables technical error details
func (s *Service) WithVerbose(verbose bool) *Service {
	s.messageHandler.showTechnical = verbose
	return s
}

// WithRetryConfig replaces the retry policy
func (s *Service) WithRetryConfig(cfg RetryConfig) *Service {
	s.retryConfig = cfg
	return s
}

// ExecuteWithRetry runs operation until it succeeds, returns a non-retryable
// error, or the retry budget is spent.
func (s *Service) ExecuteWithRetry(ctx context.Context, operation func() error, operationName string) error {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= s.retryConfig.MaxRetries; attempt++ {
		attempts++
		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !s.shouldRetry(err, attempt) {
			break
		}

		delay := s.calculateDelay(attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			continue
		}
	}

	return fmt.Errorf("operation %s failed after %d attempts: %w", operationName, attempts, lastErr)
}

// shouldRetry determines if error is retryable. Navigation failures are
// never retried here: the resolver already runs its own passes.
func (s *Service) shouldRetry(err error, attempt int) bool {
	if attempt >= s.retryConfig.MaxRetries {
		return false
	}

	if Classify(err) != KindUnknown {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryableErrors := []string{
		"timeout", "connection refused", "websocket",
		"target closed", "temporary", "not ready",
	}

	for _, retryable := range retryableErrors {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}

	return false
}

// calculateDelay computes exponential backoff delay
func (s *Service) calculateDelay(attempt int) time.Duration {
	delay := float64(s.retryConfig.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= s.retryConfig.BackoffFactor
	}
	if time.Duration(delay) > s.retryConfig.MaxDelay {
		return s.retryConfig.MaxDelay
	}
	return time.Duration(delay)
}

// GetUserFriendlyError converts technical errors to user-friendly messages
func (s *Service) GetUserFriendlyError(err error) (title, message string, suggestions []string) {
	if err == nil {
		return "", "", nil
	}

	switch Classify(err) {
	case KindOutOfRange:
		return "Page Out Of Range",
			"The requested page is beyond the document's page count.",
			[]string{
				"Remember that --page is zero-based",
				"Check the page count with the describe command",
			}
	case KindExhausted:
		return "Navigation Failed",
			"No calling convention moved the viewer to the requested page.",
			[]string{
				"Run the probe command with -v to see every attempt",
				"Check that the SDK reports its current page",
				"Increase navigation.poll_attempts if the viewer is slow",
			}
	case KindInvalidTarget:
		return "Invalid Page",
			"Page indexes must be zero or greater.",
			nil
	case KindNotReady:
		return "Viewer Not Ready",
			"The viewer never delivered its API object and render-complete signal.",
			[]string{
				"Check browser.api_expression in the configuration",
				"Check that browser.bootstrap_script signals readiness",
				"Increase browser.ready_timeout",
			}
	case KindCapabilityMissing:
		return "SDK Method Missing",
			"The SDK build does not expose a method docnav needs.",
			nil
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "yaml") || strings.Contains(errStr, "config") {
		return "Configuration Error",
			"The configuration file could not be loaded.",
			[]string{
				"Check YAML indentation (use spaces, not tabs)",
				"Run the validate command for details",
			}
	}

	if strings.Contains(errStr, "chrome") || strings.Contains(errStr, "exec") {
		return "Browser Unavailable",
			"Chrome could not be started or reached.",
			[]string{
				"Install Chrome or Chromium",
				"Run with browser.headless: true inside containers",
			}
	}

	if strings.Contains(errStr, "script") || strings.Contains(errStr, "javascript") {
		return "Script Error",
			"The SDK script could not be evaluated.",
			[]string{
				"Check the script for syntax errors",
			}
	}

	return "Unexpected Error",
		"An unexpected error occurred during the operation.",
		[]string{
			"Try running the command again",
			"Check your configuration file",
		}
}

// GetExitCode returns appropriate exit code for error
func (s *Service) GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch Classify(err) {
	case KindOutOfRange, KindInvalidTarget:
		return 4
	case KindExhausted, KindVerificationTimeout, KindCallRejected, KindCapabilityMissing:
		return 5
	case KindNotReady:
		return 3
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "config") || strings.Contains(errStr, "yaml"):
		return 2
	case strings.Contains(errStr, "chrome") || strings.Contains(errStr, "timeout"):
		return 3
	default:
		return 1
	}
}

// FormatErrorForCLI formats error for command-line display
func (s *Service) FormatErrorForCLI(err error) string {
	title, message, suggestions := s.GetUserFriendlyError(err)

	output := fmt.Sprintf("✗ %s\n%s\n", title, message)

	if s.messageHandler.showTechnical {
		output += fmt.Sprintf("\nTechnical details: %s\n", err.Error())
	}

	if len(suggestions) > 0 {
		output += "\nSuggestions:\n"
		for _, suggestion := range suggestions {
			output += fmt.Sprintf("  • %s\n", suggestion)
		}
	}

	return output
}
