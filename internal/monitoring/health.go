// internal/monitoring/health.go
package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck is a named probe. Critical failures make the whole system
// unhealthy; other failures only degrade it.
type HealthCheck struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Check    func(ctx context.Context) error
}

// CheckResult is the outcome of one check
type CheckResult struct {
	Name     string        `json:"name"`
	Status   HealthStatus  `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// SystemHealth represents overall system health information
type SystemHealth struct {
	Status     HealthStatus  `json:"status"`
	Timestamp  time.Time     `json:"timestamp"`
	Version    string        `json:"version,omitempty"`
	Uptime     time.Duration `json:"uptime"`
	Goroutines int           `json:"goroutines"`
	Checks     []CheckResult `json:"checks,omitempty"`
}

// HealthManager runs registered checks on demand
type HealthManager struct {
	mu      sync.RWMutex
	checks  map[string]HealthCheck
	version string
	started time.Time
}

// NewHealthManager creates a health manager reporting the given version
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checks:  make(map[string]HealthCheck),
		version: version,
		started: time.Now(),
	}
}

// RegisterCheck adds or replaces a check
func (hm *HealthManager) RegisterCheck(check HealthCheck) {
	if check.Timeout <= 0 {
		check.Timeout = 5 * time.Second
	}
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[check.Name] = check
}

// GetHealth runs every check and aggregates the result
func (hm *HealthManager) GetHealth(ctx context.Context) SystemHealth {
	hm.mu.RLock()
	checks := make([]HealthCheck, 0, len(hm.checks))
	for _, c := range hm.checks {
		checks = append(checks, c)
	}
	hm.mu.RUnlock()
	sort.Slice(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })

	health := SystemHealth{
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now(),
		Version:    hm.version,
		Uptime:     time.Since(hm.started),
		Goroutines: runtime.NumGoroutine(),
	}

	for _, c := range checks {
		result := runCheck(ctx, c)
		health.Checks = append(health.Checks, result)
		if result.Status == HealthStatusHealthy {
			continue
		}
		if c.Critical {
			health.Status = HealthStatusUnhealthy
		} else if health.Status == HealthStatusHealthy {
			health.Status = HealthStatusDegraded
		}
	}

	return health
}

func runCheck(ctx context.Context, c HealthCheck) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	start := time.Now()
	result := CheckResult{Name: c.Name, Status: HealthStatusHealthy}
	if err := c.Check(ctx); err != nil {
		result.Status = HealthStatusUnhealthy
		result.Error = err.Error()
	}
	result.Duration = time.Since(start)
	return result
}

// HealthHandler returns the HTTP handler for the health endpoint
func (hm *HealthManager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.GetHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		json.NewEncoder(w).Encode(health)
	}
}
