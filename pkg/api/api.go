// pkg/api/api.go

// Package api is the public entry point to docnav: the navigation resolver,
// its handle contract and the viewer session adapters.
package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/valpere/docnav/internal/config"
	naverrors "github.com/valpere/docnav/internal/errors"
	"github.com/valpere/docnav/internal/navigator"
	"github.com/valpere/docnav/internal/viewer"
	"github.com/valpere/docnav/pkg/types"
)

// Re-export types from internal packages for public API
type (
	Resolver         = navigator.Resolver
	Options          = navigator.Options
	Handle           = navigator.Handle
	Simulator        = navigator.Simulator
	Recorder         = navigator.Recorder
	Location         = navigator.Location
	Metadata         = navigator.Metadata
	Capability       = navigator.Capability
	CapabilitySet    = navigator.CapabilitySet
	CapabilityReport = navigator.CapabilityReport
	Strategy         = navigator.Strategy
	Outcome          = navigator.Outcome
	Attempt          = navigator.Attempt
	Result           = navigator.Result

	Config   = config.Config
	Session  = viewer.Session
	Registry = viewer.Registry
)

// Capability names as the SDK spells them
const (
	CapGetCurrentLocation = navigator.CapGetCurrentLocation
	CapGotoLocation       = navigator.CapGotoLocation
	CapGetCurrentPage     = navigator.CapGetCurrentPage
	CapGetPDFMetadata     = navigator.CapGetPDFMetadata
)

// ErrCapabilityMissing is returned by Handle implementations for methods
// the SDK build does not expose
var ErrCapabilityMissing = naverrors.ErrCapabilityMissing

// Strategy outcomes
const (
	OutcomeNotApplicable = navigator.OutcomeNotApplicable
	OutcomeUnverified    = navigator.OutcomeUnverified
	OutcomeVerified      = navigator.OutcomeVerified
)

// NewResolver creates a resolver and starts its worker
func NewResolver(opts Options) *Resolver { return navigator.New(opts) }

// DefaultOptions returns the production resolver timings
func DefaultOptions() Options { return navigator.DefaultOptions() }

// DefaultStrategies returns the built-in calling conventions in trial order
func DefaultStrategies() []Strategy { return navigator.DefaultStrategies() }

// NewCapabilitySet builds a capability set
func NewCapabilitySet(caps ...Capability) CapabilitySet { return navigator.NewCapabilitySet(caps...) }

// LoadConfig loads a YAML configuration file
func LoadConfig(path string) (*Config, error) { return config.LoadFromFile(path) }

// DefaultConfig returns the default configuration
func DefaultConfig() *Config { return config.Default() }

// OpenViewer opens a viewer URL in Chrome with its own resolver
func OpenViewer(ctx context.Context, cfg *Config, url string, logger *zap.Logger) (Session, error) {
	s, err := viewer.OpenBrowserSession(ctx, cfg, url, viewer.SessionDeps{Logger: logger})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// OpenScript hosts an SDK build from disk with its own resolver
func OpenScript(ctx context.Context, cfg *Config, path string, logger *zap.Logger) (Session, error) {
	s, err := viewer.OpenScriptedSession(ctx, cfg, path, viewer.SessionDeps{Logger: logger})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ResultInfo converts a result into its wire form
func ResultInfo(r Result) types.ResultInfo {
	info := types.ResultInfo{
		TargetPage: r.TargetPage,
		Success:    r.Success,
		Strategy:   r.Strategy,
		Pass:       r.Pass,
		Simulated:  r.Simulated,
		DurationMS: r.Duration.Milliseconds(),
		Attempts:   make([]types.AttemptInfo, len(r.Attempts)),
	}
	if r.Err != nil {
		info.Error = r.Err.Error()
	}
	for i, a := range r.Attempts {
		info.Attempts[i] = types.AttemptInfo{
			Strategy: a.Strategy,
			Pass:     a.Pass,
			Outcome:  a.Outcome.String(),
		}
		if a.Err != nil {
			info.Attempts[i].Error = a.Err.Error()
		}
	}
	return info
}

// SessionInfo describes a session for the wire, probing its resolver live
func SessionInfo(ctx context.Context, s Session) types.SessionInfo {
	report := s.Resolver().DescribeCapabilities(ctx)
	info := types.SessionInfo{
		ID:           s.ID(),
		URL:          s.URL(),
		Status:       types.StatusLoading,
		OpenedAt:     s.OpenedAt(),
		PendingPage:  report.PendingPage,
		Capabilities: report.Capabilities,
		NumPages:     report.NumPages,
		Strategies:   report.Strategies,
		ProbeError:   report.ProbeError,
	}
	if report.Ready {
		info.Status = types.StatusReady
	}
	if last, ok := s.Resolver().LastResult(); ok {
		ri := ResultInfo(last)
		info.LastResult = &ri
	}
	return info
}
