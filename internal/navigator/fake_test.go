// internal/navigator/fake_test.go
package navigator

import (
	"context"
	"fmt"
	"sync"

	naverrors "github.com/valpere/docnav/internal/errors"
)

// fakeHandle is an SDK handle whose gotoLocation only honours the shapes
// accepted by accept. Accepted calls move the reported page; anything else
// is rejected with an error.
type fakeHandle struct {
	mu sync.Mutex

	caps     CapabilitySet
	page     int // one-based
	location Location
	numPages int
	metaErr  error

	// accept returns the one-based page an argument moves to, or false to
	// reject it
	accept func(arg any) (int, bool)
	// pageSeq, when set, scripts successive getCurrentPage results
	pageSeq []int
	// panicOn makes gotoLocation panic for matching arguments
	panicOn func(arg any) bool

	accepted  []any
	rejected  []any
	pageReads int
}

func (f *fakeHandle) Capabilities(ctx context.Context) (CapabilitySet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := CapabilitySet{}
	for k, v := range f.caps {
		cp[k] = v
	}
	return cp, nil
}

func (f *fakeHandle) CurrentLocation(ctx context.Context) (Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.caps[CapGetCurrentLocation] {
		return nil, naverrors.ErrCapabilityMissing
	}
	if f.location == nil {
		return nil, nil
	}
	return f.location.Clone(), nil
}

func (f *fakeHandle) GotoLocation(ctx context.Context, arg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.caps[CapGotoLocation] {
		return naverrors.ErrCapabilityMissing
	}
	if f.panicOn != nil && f.panicOn(arg) {
		panic("sdk exploded")
	}
	if f.accept == nil {
		f.rejected = append(f.rejected, arg)
		return fmt.Errorf("unsupported argument %v", arg)
	}
	page, ok := f.accept(arg)
	if !ok {
		f.rejected = append(f.rejected, arg)
		return fmt.Errorf("unsupported argument %v", arg)
	}
	f.accepted = append(f.accepted, arg)
	f.page = page
	if loc, ok := arg.(Location); ok && f.location != nil {
		f.location = loc.Clone()
	}
	return nil
}

func (f *fakeHandle) CurrentPage(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.caps[CapGetCurrentPage] {
		return 0, naverrors.ErrCapabilityMissing
	}
	f.pageReads++
	if len(f.pageSeq) > 0 {
		p := f.pageSeq[0]
		if len(f.pageSeq) > 1 {
			f.pageSeq = f.pageSeq[1:]
		}
		return p, nil
	}
	return f.page, nil
}

func (f *fakeHandle) Metadata(ctx context.Context) (Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.caps[CapGetPDFMetadata] {
		return Metadata{}, naverrors.ErrCapabilityMissing
	}
	if f.metaErr != nil {
		return Metadata{}, f.metaErr
	}
	return Metadata{NumPages: f.numPages}, nil
}

func (f *fakeHandle) calls() (accepted, rejected []any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.accepted...), append([]any(nil), f.rejected...)
}

// fakeSimulator counts UI simulation requests
type fakeSimulator struct {
	mu    sync.Mutex
	pages []int
	err   error
}

func (s *fakeSimulator) Simulate(ctx context.Context, page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, page)
	return s.err
}

func (s *fakeSimulator) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

// shapeOf returns the one-based page strategy k (1..9) would carry for arg,
// or false if arg does not have exactly that strategy's shape. base is the
// location the fake reports for merge strategies.
func shapeOf(k int, arg any, base Location) (int, bool) {
	switch k {
	case 6:
		n, ok := arg.(int)
		return n, ok
	case 8:
		n, ok := arg.(int)
		return n + 1, ok
	}

	loc, ok := arg.(Location)
	if !ok {
		return 0, false
	}
	keys := func(want ...string) bool {
		if len(loc) != len(want) {
			return false
		}
		for _, k := range want {
			if _, ok := loc[k]; !ok {
				return false
			}
		}
		return true
	}
	page := func() int { n, _ := toInt(loc[FieldPage]); return n + 1 }
	same := func(key string) bool { return loc[key] == base[key] }

	switch k {
	case 1:
		n, _ := toInt(loc[FieldPageNumber])
		return page(), keys(FieldPage, FieldPageNumber, "zoom", "rotation") &&
			n == page() && same("zoom") && same("rotation")
	case 2:
		return page(), keys(FieldPage, "zoom", "rotation") && same("zoom") && same("rotation")
	case 3:
		return page(), keys(FieldPage)
	case 4:
		return page(), keys(FieldPage, "x", "y") && loc["x"] == 0 && loc["y"] == 0
	case 5:
		return page(), keys(FieldPage, "x", "y", "zoom") && loc["zoom"] == 1
	case 7:
		n, _ := toInt(loc[FieldPageNumber])
		return n, keys(FieldPageNumber)
	case 9:
		n, _ := toInt(loc[FieldPageNumber])
		return n + 1, keys(FieldPageNumber)
	}
	return 0, false
}

// newStrategyFake builds a handle that implements only strategy k's shape
func newStrategyFake(k, numPages int) *fakeHandle {
	f := &fakeHandle{
		caps:     NewCapabilitySet(CapGotoLocation, CapGetCurrentPage, CapGetPDFMetadata),
		page:     numPages,
		numPages: numPages,
	}
	if k <= 2 {
		f.caps[CapGetCurrentLocation] = true
		f.location = Location{FieldPage: numPages - 1, FieldPageNumber: numPages, "zoom": 1.5, "rotation": 90}
	}
	base := f.location
	f.accept = func(arg any) (int, bool) { return shapeOf(k, arg, base) }
	return f
}

func testOptions() Options {
	return Options{
		Passes:       2,
		PassPause:    0,
		PollAttempts: 3,
		PollInterval: 0,
	}
}
