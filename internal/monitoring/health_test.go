// internal/monitoring/health_test.go
package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthManager_Aggregation(t *testing.T) {
	tests := []struct {
		name     string
		critical bool
		fail     bool
		want     HealthStatus
	}{
		{"all_ok", true, false, HealthStatusHealthy},
		{"non_critical_failure", false, true, HealthStatusDegraded},
		{"critical_failure", true, true, HealthStatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hm := NewHealthManager("test")
			hm.RegisterCheck(HealthCheck{Name: "always", Check: func(context.Context) error { return nil }})
			hm.RegisterCheck(HealthCheck{
				Name:     "probe",
				Critical: tt.critical,
				Check: func(context.Context) error {
					if tt.fail {
						return errors.New("down")
					}
					return nil
				},
			})

			health := hm.GetHealth(context.Background())
			if health.Status != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, health.Status)
			}
			if len(health.Checks) != 2 || health.Checks[0].Name != "always" {
				t.Errorf("Expected two checks sorted by name, got %+v", health.Checks)
			}
		})
	}
}

func TestHealthHandler_StatusCode(t *testing.T) {
	hm := NewHealthManager("test")
	hm.RegisterCheck(HealthCheck{Name: "browser", Critical: true, Check: func(context.Context) error {
		return errors.New("chrome gone")
	}})

	rec := httptest.NewRecorder()
	hm.HealthHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}
