package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status of one component check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc probes one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name     string
	critical bool
	fn       CheckFunc
}

// CheckResult is the outcome of one component probe.
type CheckResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Critical bool          `json:"critical"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Manager runs registered dependency checks. Readiness fails when any
// critical check fails; liveness only reflects the process itself.
type Manager struct {
	mu      sync.RWMutex
	checks  []check
	timeout time.Duration
	logger  *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{timeout: 5 * time.Second, logger: logger}
}

// Register adds a named dependency check.
func (m *Manager) Register(name string, critical bool, fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, check{name: name, critical: critical, fn: fn})
}

// Run executes all checks and returns per-component results.
func (m *Manager) Run(ctx context.Context) []CheckResult {
	m.mu.RLock()
	checks := make([]check, len(m.checks))
	copy(checks, m.checks)
	m.mu.RUnlock()

	results := make([]CheckResult, 0, len(checks))
	for _, c := range checks {
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		start := time.Now()
		err := c.fn(cctx)
		cancel()

		r := CheckResult{
			Name:     c.name,
			Status:   StatusHealthy,
			Critical: c.critical,
			Duration: time.Since(start),
		}
		if err != nil {
			r.Status = StatusUnhealthy
			r.Error = err.Error()
			m.logger.Warn("Health check failed",
				zap.String("check", c.name),
				zap.Bool("critical", c.critical),
				zap.Error(err))
		}
		results = append(results, r)
	}
	return results
}

// IsReady reports whether all critical dependencies are reachable.
func (m *Manager) IsReady(ctx context.Context) bool {
	for _, r := range m.Run(ctx) {
		if r.Critical && r.Status != StatusHealthy {
			return false
		}
	}
	return true
}
