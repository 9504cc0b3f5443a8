// internal/navigator/strategies.go
package navigator

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Target carries both numbering conventions for one requested page
type Target struct {
	OneBased  int
	ZeroBased int
}

// NewTarget builds a target from a one-based page number
func NewTarget(oneBased int) Target {
	return Target{OneBased: oneBased, ZeroBased: oneBased - 1}
}

// Strategy is one candidate calling convention for gotoLocation. Build
// produces the argument to submit; it may read from the handle (for
// location merges) but must not change viewer state.
type Strategy struct {
	Name     string
	Requires []Capability
	Build    func(ctx context.Context, h Handle, t Target) (any, error)
}

// errNotApplicable is returned by Build when the SDK's current state gives
// the strategy nothing to work with, e.g. an undefined location object.
var errNotApplicable = stderrors.New("strategy not applicable")

// DefaultStrategies returns the descriptors in precedence order
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name:     "location-merge",
			Requires: []Capability{CapGetCurrentLocation, CapGotoLocation},
			Build: func(ctx context.Context, h Handle, t Target) (any, error) {
				return mergeLocation(ctx, h, t, true)
			},
		},
		{
			Name:     "location-merge-minimal",
			Requires: []Capability{CapGetCurrentLocation, CapGotoLocation},
			Build: func(ctx context.Context, h Handle, t Target) (any, error) {
				return mergeLocation(ctx, h, t, false)
			},
		},
		{
			Name:     "location-page",
			Requires: []Capability{CapGotoLocation},
			Build: func(_ context.Context, _ Handle, t Target) (any, error) {
				return Location{FieldPage: t.ZeroBased}, nil
			},
		},
		{
			Name:     "location-page-origin",
			Requires: []Capability{CapGotoLocation},
			Build: func(_ context.Context, _ Handle, t Target) (any, error) {
				return Location{FieldPage: t.ZeroBased, "x": 0, "y": 0}, nil
			},
		},
		{
			Name:     "location-page-origin-zoom",
			Requires: []Capability{CapGotoLocation},
			Build: func(_ context.Context, _ Handle, t Target) (any, error) {
				return Location{FieldPage: t.ZeroBased, "x": 0, "y": 0, "zoom": 1}, nil
			},
		},
		{
			Name:     "number-one-based",
			Requires: []Capability{CapGotoLocation},
			Build: func(_ context.Context, _ Handle, t Target) (any, error) {
				return t.OneBased, nil
			},
		},
		{
			Name:     "page-number-one-based",
			Requires: []Capability{CapGotoLocation},
			Build: func(_ context.Context, _ Handle, t Target) (any, error) {
				return Location{FieldPageNumber: t.OneBased}, nil
			},
		},
		{
			Name:     "number-zero-based",
			Requires: []Capability{CapGotoLocation},
			Build: func(_ context.Context, _ Handle, t Target) (any, error) {
				return t.ZeroBased, nil
			},
		},
		{
			Name:     "page-number-zero-based",
			Requires: []Capability{CapGotoLocation},
			Build: func(_ context.Context, _ Handle, t Target) (any, error) {
				return Location{FieldPageNumber: t.ZeroBased}, nil
			},
		},
	}
}

// StrategyNames lists strategy names in order
func StrategyNames(strategies []Strategy) []string {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.Name
	}
	return names
}

// mergeLocation overwrites the page fields of the current location and
// leaves every other field as the SDK reported it. With withPageNumber the
// one-based field is kept in sync when the SDK's object carries it;
// without, it is dropped.
func mergeLocation(ctx context.Context, h Handle, t Target, withPageNumber bool) (any, error) {
	current, err := h.CurrentLocation(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, errNotApplicable
	}

	merged := current.Clone()
	merged[FieldPage] = t.ZeroBased
	if _, ok := merged[FieldPageNumber]; ok {
		if withPageNumber {
			merged[FieldPageNumber] = t.OneBased
		} else {
			delete(merged, FieldPageNumber)
		}
	}
	return merged, nil
}

// guard converts a panic inside an adapter call into an error
func guard(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sdk call panicked: %v", rec)
		}
	}()
	return fn()
}
