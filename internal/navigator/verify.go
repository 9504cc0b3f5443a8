// internal/navigator/verify.go
package navigator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	naverrors "github.com/valpere/docnav/internal/errors"
)

// Poller samples the page the SDK reports until it matches a target
type Poller struct {
	Attempts int
	Interval time.Duration
	recorder Recorder
}

// NewPoller creates a poller; non-positive values fall back to 10 polls
// 160ms apart.
func NewPoller(attempts int, interval time.Duration, rec Recorder) *Poller {
	if attempts <= 0 {
		attempts = 10
	}
	if interval < 0 {
		interval = 160 * time.Millisecond
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Poller{Attempts: attempts, Interval: interval, recorder: rec}
}

// Verify reports whether the handle reaches pageOneBased within the poll
// budget. Without a page accessor it returns false at once.
func (p *Poller) Verify(ctx context.Context, h Handle, caps CapabilitySet, pageOneBased int) bool {
	if !CanVerify(caps) {
		return false
	}

	for i := 1; i <= p.Attempts; i++ {
		page, err := CurrentPage(ctx, h, caps)
		if err == nil && page == pageOneBased {
			p.recorder.VerificationPolled(i, true)
			return true
		}
		if i == p.Attempts {
			break
		}
		if !sleep(ctx, p.Interval) {
			p.recorder.VerificationPolled(i, false)
			return false
		}
	}
	p.recorder.VerificationPolled(p.Attempts, false)
	return false
}

// CanVerify reports whether caps include any way to read the current page
func CanVerify(caps CapabilitySet) bool {
	return caps.Has(CapGetCurrentPage) || caps.Has(CapGetCurrentLocation)
}

// CurrentPage returns the one-based page the SDK reports. The direct
// accessor wins; otherwise the page is read out of the location object.
func CurrentPage(ctx context.Context, h Handle, caps CapabilitySet) (int, error) {
	if caps.Has(CapGetCurrentPage) {
		var page int
		err := guard(func() error {
			var err error
			page, err = h.CurrentPage(ctx)
			return err
		})
		if err == nil {
			return page, nil
		}
		if !caps.Has(CapGetCurrentLocation) {
			return 0, err
		}
	}

	if !caps.Has(CapGetCurrentLocation) {
		return 0, naverrors.ErrCapabilityMissing
	}

	var loc Location
	err := guard(func() error {
		var err error
		loc, err = h.CurrentLocation(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	return PageFromLocation(loc)
}

// PageFromLocation extracts the one-based page from a location object,
// preferring the one-based field over the zero-based one.
func PageFromLocation(loc Location) (int, error) {
	if loc == nil {
		return 0, fmt.Errorf("location is undefined")
	}
	if v, ok := loc[FieldPageNumber]; ok {
		if n, ok := toInt(v); ok {
			return n, nil
		}
	}
	if v, ok := loc[FieldPage]; ok {
		if n, ok := toInt(v); ok {
			return n + 1, nil
		}
	}
	return 0, fmt.Errorf("location has no page field")
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if math.IsNaN(n) || n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case float32:
		return toInt(float64(n))
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

// sleep waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
