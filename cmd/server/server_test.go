// cmd/server/server_test.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valpere/docnav/internal/config"
	"github.com/valpere/docnav/internal/monitoring"
	"github.com/valpere/docnav/internal/viewer"
	"github.com/valpere/docnav/pkg/types"
)

// testSDK registers its API immediately but only signals rendering when
// window.render() is called, so tests can observe the queued state
const testSDK = `
(function () {
  var loc = { page: 0, pageNumber: 1 };
  docnav.register({
    getCurrentLocation: function () { return Object.assign({}, loc); },
    gotoLocation: function (arg) {
      loc.page = arg.page;
      loc.pageNumber = arg.page + 1;
    },
    getCurrentPage: function () { return loc.pageNumber; },
    getPDFMetadata: function () { return { numPages: 10 }; }
  });
  window.render = function () { docnav.signal('rendered'); };
})();
`

// scriptedOpener opens file:// URLs as goja-hosted SDK scripts
func scriptedOpener(ctx context.Context, cfg *config.Config, rawURL string, deps viewer.SessionDeps) (viewer.Session, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return viewer.OpenScriptedSession(ctx, cfg, u.Path, deps)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Navigation.PassPause = "0s"
	cfg.Navigation.PollInterval = "0s"
	cfg.Navigation.PollAttempts = 2
	cfg.Server.MaxSessions = 2
	return cfg
}

func setupTestServer(t *testing.T, cfg *config.Config) (*httptest.Server, *Server) {
	t.Helper()
	srv := NewServer(cfg, scriptedOpener, monitoring.NewMetricsManager(monitoring.MetricsConfig{}), nil)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts, srv
}

func writeSDK(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sdk.js")
	if err := os.WriteFile(path, []byte(testSDK), 0o644); err != nil {
		t.Fatalf("failed to write sdk: %v", err)
	}
	return "file://" + path
}

func postJSON(t *testing.T, target string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	resp, err := http.Post(target, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func openSession(t *testing.T, ts *httptest.Server, sdkURL string) types.SessionInfo {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/v1/sessions", types.OpenSessionRequest{URL: sdkURL})
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("Expected status 201, got %d. Body: %s", resp.StatusCode, body)
	}
	var info types.SessionInfo
	decode(t, resp, &info)
	return info
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := setupTestServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	var health monitoring.SystemHealth
	decode(t, resp, &health)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if health.Status != monitoring.HealthStatusHealthy {
		t.Errorf("Expected healthy status, got %s", health.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := setupTestServer(t, testConfig())
	openSession(t, ts, writeSDK(t))

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "docnav_sessions_active 1") {
		t.Errorf("Expected one active session in metrics, got:\n%s", body)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts, srv := setupTestServer(t, testConfig())

	info := openSession(t, ts, writeSDK(t))
	if info.ID == "" {
		t.Fatal("Expected a session ID")
	}
	if info.Status != types.StatusLoading {
		t.Errorf("Expected loading status before the render signal, got %s", info.Status)
	}

	page := 4
	resp := postJSON(t, ts.URL+"/api/v1/sessions/"+info.ID+"/navigate", types.NavigateRequest{Page: &page})
	var nav types.NavigateResponse
	decode(t, resp, &nav)
	if resp.StatusCode != http.StatusAccepted || nav.Dispatched {
		t.Errorf("Expected queued navigation with 202, got %d %+v", resp.StatusCode, nav)
	}

	session, ok := srv.registry.Get(info.ID)
	if !ok {
		t.Fatal("Expected session in registry")
	}
	scripted := session.(*viewer.ScriptedSession)
	if err := scripted.Handle().Load(context.Background(), "window.render();"); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var got types.SessionInfo
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.URL + "/api/v1/sessions/" + info.ID)
		if err != nil {
			t.Fatalf("get session failed: %v", err)
		}
		decode(t, resp, &got)
		if got.LastResult != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got.Status != types.StatusReady {
		t.Errorf("Expected ready status, got %s", got.Status)
	}
	if got.LastResult == nil || !got.LastResult.Success || got.LastResult.TargetPage != 5 {
		t.Fatalf("Expected successful navigation to page 5, got %+v", got.LastResult)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/sessions/"+info.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/v1/sessions/" + info.ID)
	if err != nil {
		t.Fatalf("get session failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", resp.StatusCode)
	}
}

func TestListSessions(t *testing.T) {
	ts, _ := setupTestServer(t, testConfig())
	sdk := writeSDK(t)
	first := openSession(t, ts, sdk)
	second := openSession(t, ts, sdk)

	resp, err := http.Get(ts.URL + "/api/v1/sessions")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var list types.SessionList
	decode(t, resp, &list)

	if list.Count != 2 {
		t.Fatalf("Expected 2 sessions, got %d", list.Count)
	}
	if list.Sessions[0].ID != first.ID || list.Sessions[1].ID != second.ID {
		t.Errorf("Expected sessions oldest first, got %s, %s", list.Sessions[0].ID, list.Sessions[1].ID)
	}
}

func TestSessionLimit(t *testing.T) {
	ts, _ := setupTestServer(t, testConfig())
	sdk := writeSDK(t)
	openSession(t, ts, sdk)
	openSession(t, ts, sdk)

	resp := postJSON(t, ts.URL+"/api/v1/sessions", types.OpenSessionRequest{URL: sdk})
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 at the session limit, got %d", resp.StatusCode)
	}

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	var health monitoring.SystemHealth
	decode(t, resp, &health)
	if health.Status != monitoring.HealthStatusDegraded {
		t.Errorf("Expected degraded health at the session limit, got %s", health.Status)
	}
}

func TestRequestValidation(t *testing.T) {
	ts, _ := setupTestServer(t, testConfig())
	info := openSession(t, ts, writeSDK(t))

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"missing_url", "/api/v1/sessions", `{}`, http.StatusBadRequest},
		{"bad_scheme", "/api/v1/sessions", `{"url":"ftp://example.com/doc"}`, http.StatusBadRequest},
		{"unknown_field", "/api/v1/sessions", `{"url":"https://example.com","page":1}`, http.StatusBadRequest},
		{"negative_page", "/api/v1/sessions/" + info.ID + "/navigate", `{"page":-1}`, http.StatusBadRequest},
		{"missing_page", "/api/v1/sessions/" + info.ID + "/navigate", `{}`, http.StatusBadRequest},
		{"unknown_session", "/api/v1/sessions/nope/navigate", `{"page":1}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+tt.path, "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			var body types.ErrorResponse
			decode(t, resp, &body)
			if resp.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d (%s)", tt.status, resp.StatusCode, body.Error)
			}
			if body.Code != tt.status || body.Error == "" {
				t.Errorf("Expected error body with code %d, got %+v", tt.status, body)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit = 0.001
	cfg.Server.Burst = 2
	ts, _ := setupTestServer(t, cfg)

	var limited bool
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/api/v1/sessions")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("Expected the third request to be rate limited")
	}

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected health to bypass the rate limit, got %d", resp.StatusCode)
	}
}

func TestApplyConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit = 0.001
	cfg.Server.Burst = 1
	ts, srv := setupTestServer(t, cfg)

	next := testConfig()
	next.Name = "reloaded"
	srv.ApplyConfig(next)

	if srv.config().Name != "reloaded" {
		t.Errorf("Expected reloaded configuration, got %s", srv.config().Name)
	}
	for i := 0; i < 5; i++ {
		resp, err := http.Get(ts.URL + "/api/v1/sessions")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected unlimited requests after reload, got %d on request %d", resp.StatusCode, i)
		}
	}
}

func TestApplyConfigSessionLimit(t *testing.T) {
	ts, srv := setupTestServer(t, testConfig())
	sdk := writeSDK(t)
	openSession(t, ts, sdk)
	openSession(t, ts, sdk)

	next := testConfig()
	next.Server.MaxSessions = 3
	srv.ApplyConfig(next)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	var health monitoring.SystemHealth
	decode(t, resp, &health)
	if health.Status != monitoring.HealthStatusHealthy {
		t.Errorf("Expected healthy status under the raised limit, got %s", health.Status)
	}

	openSession(t, ts, sdk)
	resp = postJSON(t, ts.URL+"/api/v1/sessions", types.OpenSessionRequest{URL: sdk})
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 at the reloaded limit, got %d", resp.StatusCode)
	}
}

func TestNavigateClosedSession(t *testing.T) {
	ts, srv := setupTestServer(t, testConfig())
	info := openSession(t, ts, writeSDK(t))

	session, ok := srv.registry.Get(info.ID)
	if !ok {
		t.Fatal("Expected session in registry")
	}
	session.Resolver().Close()

	page := 1
	resp := postJSON(t, ts.URL+"/api/v1/sessions/"+info.ID+"/navigate", types.NavigateRequest{Page: &page})
	var body types.ErrorResponse
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 for a closing session, got %d", resp.StatusCode)
	}
	if !strings.Contains(body.Error, "closing") {
		t.Errorf("Expected closing error, got %q", body.Error)
	}
}
