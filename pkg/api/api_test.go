// pkg/api/api_test.go
package api

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/valpere/docnav/pkg/types"
)

const sdk = `
var loc = { page: 0, pageNumber: 1, zoom: 2 };
docnav.register({
  getCurrentLocation: function () { return Object.assign({}, loc); },
  gotoLocation: function (l) { loc = Object.assign({}, loc, l); loc.pageNumber = loc.page + 1; },
  getCurrentPage: function () { return loc.pageNumber; },
  getPDFMetadata: function () { return { numPages: 9 }; }
});
docnav.signal('rendered');
`

func TestOpenScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sdk.js")
	if err := os.WriteFile(path, []byte(sdk), 0o644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Navigation.PollInterval = "0s"
	s, err := OpenScript(context.Background(), cfg, path, nil)
	if err != nil {
		t.Fatalf("OpenScript failed: %v", err)
	}
	defer s.Close()

	res := s.Resolver().DebugNavigate(context.Background(), 3)
	if !res.Success || res.Strategy != "location-merge" {
		t.Fatalf("Expected location-merge to succeed, got %+v", res)
	}

	info := SessionInfo(context.Background(), s)
	if info.Status != types.StatusReady || info.NumPages != 9 {
		t.Errorf("Expected ready session with 9 pages, got %+v", info)
	}
	if info.LastResult == nil || info.LastResult.TargetPage != 4 {
		t.Errorf("Expected last result for page 4, got %+v", info.LastResult)
	}
	if len(info.Capabilities) != 4 {
		t.Errorf("Expected 4 capabilities, got %v", info.Capabilities)
	}
}

func TestResultInfo(t *testing.T) {
	res := Result{
		TargetPage: 3,
		Attempts: []Attempt{
			{Strategy: "location-merge", Pass: 1, Outcome: OutcomeNotApplicable},
			{Strategy: "location-page", Pass: 1, Outcome: OutcomeUnverified, Err: errors.New("rejected")},
		},
		Err:      errors.New("exhausted"),
		Duration: 1500 * time.Millisecond,
	}

	info := ResultInfo(res)
	if info.DurationMS != 1500 || info.Error != "exhausted" {
		t.Errorf("Unexpected summary: %+v", info)
	}
	if info.Attempts[0].Outcome != "not_applicable" || info.Attempts[1].Error != "rejected" {
		t.Errorf("Unexpected attempts: %+v", info.Attempts)
	}
}

func TestNewResolver_Reexports(t *testing.T) {
	r := NewResolver(DefaultOptions())
	defer r.Close()

	if r.IsReady() {
		t.Error("Expected a fresh resolver not to be ready")
	}
	if len(DefaultStrategies()) != 9 {
		t.Errorf("Expected 9 strategies, got %d", len(DefaultStrategies()))
	}
	if !NewCapabilitySet(CapGotoLocation).Has(CapGotoLocation) {
		t.Error("Expected capability set to contain gotoLocation")
	}
}
