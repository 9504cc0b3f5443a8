// internal/navigator/types.go

// Package navigator resolves which page-navigation calling convention a
// PDF-viewer SDK build actually honours. It tracks SDK readiness, queues
// requests issued too early, walks an ordered list of strategy descriptors
// and verifies each attempt against the page the SDK reports.
package navigator

import (
	"context"
	"sort"
	"time"
)

// Capability names one optional method on the SDK's API object
type Capability string

const (
	CapGetCurrentLocation Capability = "getCurrentLocation"
	CapGotoLocation       Capability = "gotoLocation"
	CapGetCurrentPage     Capability = "getCurrentPage"
	CapGetPDFMetadata     Capability = "getPDFMetadata"
)

// AllCapabilities lists every capability the resolver knows how to use
var AllCapabilities = []Capability{
	CapGetCurrentLocation,
	CapGotoLocation,
	CapGetCurrentPage,
	CapGetPDFMetadata,
}

// CapabilitySet is the set of methods present on a handle at probe time
type CapabilitySet map[Capability]bool

// NewCapabilitySet builds a set from the given capabilities
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return set
}

// Has reports whether every capability in caps is present
func (s CapabilitySet) Has(caps ...Capability) bool {
	for _, c := range caps {
		if !s[c] {
			return false
		}
	}
	return true
}

// Names returns the present capabilities in stable order
func (s CapabilitySet) Names() []string {
	names := make([]string, 0, len(s))
	for c, ok := range s {
		if ok {
			names = append(names, string(c))
		}
	}
	sort.Strings(names)
	return names
}

// Location is the SDK's location object. Fields other than the page are
// opaque view state (zoom, scroll offsets, rotation) and must survive a
// merge untouched.
type Location map[string]any

// Location field names
const (
	FieldPage       = "page"       // zero-based
	FieldPageNumber = "pageNumber" // one-based
)

// Clone returns a shallow copy of the location
func (l Location) Clone() Location {
	cp := make(Location, len(l))
	for k, v := range l {
		cp[k] = v
	}
	return cp
}

// Metadata is the subset of the SDK's PDF metadata the resolver reads
type Metadata struct {
	NumPages int `json:"numPages,omitempty"`
}

// Handle is the SDK's API object as seen through an adapter. Methods the
// SDK build lacks return an error matching errors.ErrCapabilityMissing.
type Handle interface {
	Capabilities(ctx context.Context) (CapabilitySet, error)
	CurrentLocation(ctx context.Context) (Location, error)
	GotoLocation(ctx context.Context, arg any) error
	CurrentPage(ctx context.Context) (int, error)
	Metadata(ctx context.Context) (Metadata, error)
}

// Simulator drives the viewer's own page-number input control
type Simulator interface {
	Simulate(ctx context.Context, pageOneBased int) error
}

// Outcome is the result of one strategy attempt
type Outcome int

const (
	OutcomeNotApplicable Outcome = iota
	OutcomeUnverified
	OutcomeVerified
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeUnverified:
		return "unverified"
	default:
		return "not_applicable"
	}
}

// MarshalText encodes the outcome by name
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Attempt records one strategy invocation within a resolution sequence
type Attempt struct {
	Strategy string  `json:"strategy"`
	Pass     int     `json:"pass"`
	Outcome  Outcome `json:"outcome"`
	Err      error   `json:"-"`
}

// Result describes a finished resolution sequence
type Result struct {
	TargetPage int           `json:"target_page"` // one-based
	Success    bool          `json:"success"`
	Strategy   string        `json:"strategy,omitempty"`
	Pass       int           `json:"pass,omitempty"`
	Attempts   []Attempt     `json:"attempts"`
	Simulated  bool          `json:"simulated"`
	Err        error         `json:"-"`
	Duration   time.Duration `json:"duration"`
}

// CapabilityReport is the resolver's diagnostic snapshot
type CapabilityReport struct {
	HasAPIHandle   bool     `json:"has_api_handle"`
	HasReadySignal bool     `json:"has_ready_signal"`
	Ready          bool     `json:"ready"`
	PendingPage    *int     `json:"pending_page,omitempty"` // zero-based
	Capabilities   []string `json:"capabilities"`
	NumPages       int      `json:"num_pages,omitempty"`
	Strategies     []string `json:"strategies"`
	ProbeError     string   `json:"probe_error,omitempty"`
}

// Recorder receives navigation events, typically for metrics
type Recorder interface {
	NavigationRequested(disposition string)
	StrategyAttempted(strategy string, outcome Outcome)
	VerificationPolled(polls int, matched bool)
	Simulated(err error)
	Resolved(success bool, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) NavigationRequested(string) {}
func (nopRecorder) StrategyAttempted(string, Outcome) {}
func (nopRecorder) VerificationPolled(int, bool) {}
func (nopRecorder) Simulated(error) {}
func (nopRecorder) Resolved(bool, time.Duration) {}
