// pkg/types/types.go
package types

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

// SessionStatus represents the readiness of a viewer session
type SessionStatus string

const (
	StatusLoading SessionStatus = "loading"
	StatusReady   SessionStatus = "ready"
)

// ValidStatuses returns all valid session status values
func ValidStatuses() []SessionStatus {
	return []SessionStatus{StatusLoading, StatusReady}
}

// IsValid checks if the status is a valid value
func (s SessionStatus) IsValid() bool {
	for _, valid := range ValidStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// allowedSchemes lists the viewer URL schemes a session may open
var allowedSchemes = map[string]bool{"http": true, "https": true, "file": true}

// OpenSessionRequest opens a viewer page
type OpenSessionRequest struct {
	URL string `json:"url"`
}

// Validate checks the viewer URL
func (r OpenSessionRequest) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if !allowedSchemes[strings.ToLower(u.Scheme)] {
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Scheme != "file" && u.Host == "" {
		return fmt.Errorf("url must include a host")
	}
	return nil
}

// NavigateRequest asks a session to show a zero-based page
type NavigateRequest struct {
	Page *int `json:"page"`
}

// Validate checks the page index
func (r NavigateRequest) Validate() error {
	if r.Page == nil {
		return fmt.Errorf("page is required")
	}
	if *r.Page < 0 {
		return fmt.Errorf("page must be zero or greater, got %d", *r.Page)
	}
	return nil
}

// NavigateResponse reports whether the request was dispatched now (true)
// or queued until the viewer is ready (false)
type NavigateResponse struct {
	Dispatched bool `json:"dispatched"`
	Page       int  `json:"page"`
}

// AttemptInfo is one strategy attempt
type AttemptInfo struct {
	Strategy string `json:"strategy"`
	Pass     int    `json:"pass"`
	Outcome  string `json:"outcome"`
	Error    string `json:"error,omitempty"`
}

// ResultInfo is a finished resolution sequence
type ResultInfo struct {
	TargetPage int           `json:"target_page"` // one-based
	Success    bool          `json:"success"`
	Strategy   string        `json:"strategy,omitempty"`
	Pass       int           `json:"pass,omitempty"`
	Simulated  bool          `json:"simulated"`
	Error      string        `json:"error,omitempty"`
	DurationMS int64         `json:"duration_ms"`
	Attempts   []AttemptInfo `json:"attempts"`
}

// SessionInfo describes an open session
type SessionInfo struct {
	ID           string        `json:"id"`
	URL          string        `json:"url"`
	Status       SessionStatus `json:"status"`
	OpenedAt     time.Time     `json:"opened_at"`
	PendingPage  *int          `json:"pending_page,omitempty"`
	Capabilities []string      `json:"capabilities"`
	NumPages     int           `json:"num_pages,omitempty"`
	Strategies   []string      `json:"strategies,omitempty"`
	ProbeError   string        `json:"probe_error,omitempty"`
	LastResult   *ResultInfo   `json:"last_result,omitempty"`
}

// SessionList is the response of the session listing
type SessionList struct {
	Sessions []SessionInfo `json:"sessions"`
	Count    int           `json:"count"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// DecodeJSON decodes a single JSON document, rejecting unknown fields and
// trailing data
func DecodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("invalid JSON body: unexpected trailing data")
	}
	return nil
}
