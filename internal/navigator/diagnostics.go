// internal/navigator/diagnostics.go
package navigator

import (
	"context"

	naverrors "github.com/valpere/docnav/internal/errors"
)

// DescribeCapabilities reports readiness, the pending target and what the
// current SDK handle exposes. It probes the handle live.
func (r *Resolver) DescribeCapabilities(ctx context.Context) CapabilityReport {
	hasHandle, hasSignal := r.readiness.State()
	report := CapabilityReport{
		HasAPIHandle:   hasHandle,
		HasReadySignal: hasSignal,
		Ready:          hasHandle && hasSignal,
		Capabilities:   []string{},
		Strategies:     StrategyNames(r.opts.Strategies),
	}
	if page, ok := r.readiness.Pending(); ok {
		report.PendingPage = &page
	}

	h := r.readiness.Handle()
	if h == nil {
		return report
	}

	caps, err := r.probe(ctx, h)
	if err != nil {
		report.ProbeError = err.Error()
		return report
	}
	report.Capabilities = caps.Names()
	if total, ok := r.pageCount(ctx, h, caps); ok {
		report.NumPages = total
	}
	return report
}

// DebugNavigate runs a sequence for a zero-based page synchronously and
// returns the full attempt trace. It bypasses the pending queue and refuses
// to run before readiness.
func (r *Resolver) DebugNavigate(ctx context.Context, pageIndex int) Result {
	page := pageIndex + 1
	if pageIndex < 0 {
		return Result{TargetPage: page, Err: naverrors.New(naverrors.KindInvalidTarget, page, nil)}
	}
	if !r.readiness.IsReady() {
		return Result{TargetPage: page, Err: naverrors.New(naverrors.KindNotReady, page, nil)}
	}
	return r.resolve(ctx, page)
}
