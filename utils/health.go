package utils

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Pinger is anything the health monitor can probe.
type Pinger func(ctx context.Context) error

// HealthStatus represents current status of external services.
type HealthStatus struct {
	Healthy   bool            `json:"healthy"`
	Checks    map[string]bool `json:"checks"`
	CheckedAt time.Time       `json:"checkedAt"`
}

// HealthMonitor probes its dependencies on a cron schedule and keeps the
// latest snapshot.
type HealthMonitor struct {
	mu      sync.RWMutex
	checks  map[string]Pinger
	current HealthStatus
	cron    *cron.Cron
	logger  *zap.Logger
}

func NewHealthMonitor(logger *zap.Logger) *HealthMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthMonitor{
		checks:  make(map[string]Pinger),
		current: HealthStatus{Healthy: true, Checks: map[string]bool{}},
		logger:  logger,
	}
}

// Register adds a named probe. Must be called before Start.
func (m *HealthMonitor) Register(name string, p Pinger) {
	m.checks[name] = p
}

// Status returns the latest snapshot.
func (m *HealthMonitor) Status() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Check runs every probe once and stores the result.
func (m *HealthMonitor) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{Healthy: true, Checks: make(map[string]bool, len(m.checks)), CheckedAt: time.Now().UTC()}
	for name, ping := range m.checks {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := ping(pctx)
		cancel()
		status.Checks[name] = err == nil
		if err != nil {
			status.Healthy = false
			m.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
		}
	}

	m.mu.Lock()
	m.current = status
	m.mu.Unlock()
	return status
}

// Start runs Check immediately and then on the given cron spec, for example
// "@every 1m".
func (m *HealthMonitor) Start(spec string) error {
	m.Check(context.Background())
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { m.Check(context.Background()) }); err != nil {
		return err
	}
	m.cron = c
	c.Start()
	return nil
}

func (m *HealthMonitor) Stop() {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
}
