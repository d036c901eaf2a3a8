package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flowforge/orchestrator/pkg/config"
)

// healthUserID is the pseudo user under which the health monitor probes
// services. Services that require injected credentials cannot be probed this
// way (no real user to credential against) and are reported unknown instead.
const healthUserID = "__health__"

// HealthStatus captures the health check result for a single MCP service.
type HealthStatus struct {
	ServiceName string    `json:"service_name"`
	Healthy     bool      `json:"healthy"`
	LastCheck   time.Time `json:"last_check"`
	Error       string    `json:"error,omitempty"`
	ToolCount   int       `json:"tool_count"`
	Skipped     bool      `json:"skipped,omitempty"`
}

// HealthMonitor periodically probes MCP services that require no injected
// credentials, to surface readiness/liveness without per-user connections.
type HealthMonitor struct {
	manager  *Manager
	registry *config.ServiceRegistry

	checkInterval time.Duration
	pingTimeout   time.Duration

	statuses   map[string]*HealthStatus
	statusesMu sync.RWMutex

	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
}

// NewHealthMonitor creates a new health monitor.
func NewHealthMonitor(manager *Manager, registry *config.ServiceRegistry) *HealthMonitor {
	return &HealthMonitor{
		manager:       manager,
		registry:      registry,
		checkInterval: MCPHealthInterval,
		pingTimeout:   MCPHealthPingTimeout,
		statuses:      make(map[string]*HealthStatus),
		logger:        slog.Default(),
	}
}

// Start launches the background health check loop. Calling Start on an
// already-running monitor is a no-op.
func (m *HealthMonitor) Start(ctx context.Context) {
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go m.loop(ctx)
}

// Stop gracefully shuts down the health monitor. After Stop returns, Start
// may be called again.
func (m *HealthMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.done != nil {
		<-m.done
	}

	m.manager.DisconnectUser(healthUserID)

	m.statusesMu.Lock()
	m.statuses = make(map[string]*HealthStatus)
	m.statusesMu.Unlock()

	m.cancel = nil
	m.done = nil
}

func (m *HealthMonitor) loop(ctx context.Context) {
	defer close(m.done)

	m.checkAll(ctx)

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkAll(ctx)
		}
	}
}

func (m *HealthMonitor) checkAll(ctx context.Context) {
	for serviceName, svcCfg := range m.registry.GetAll() {
		if len(svcCfg.RequiredCredentialKeys) > 0 {
			m.setStatus(serviceName, &HealthStatus{
				ServiceName: serviceName,
				Healthy:     true,
				LastCheck:   time.Now(),
				Skipped:     true,
			})
			continue
		}
		m.checkService(ctx, serviceName)
	}
}

func (m *HealthMonitor) checkService(ctx context.Context, serviceName string) {
	m.manager.InvalidateToolCache(healthUserID, serviceName)

	checkCtx, cancel := context.WithTimeout(ctx, m.pingTimeout)
	defer cancel()

	tools, err := m.manager.ListTools(checkCtx, healthUserID, serviceName)
	if err != nil {
		m.logger.Warn("MCP health check failed", "service", serviceName, "error", err)
		m.setStatus(serviceName, &HealthStatus{
			ServiceName: serviceName,
			Healthy:     false,
			LastCheck:   time.Now(),
			Error:       fmt.Sprintf("health check failed: %s", err.Error()),
		})
		return
	}

	m.setStatus(serviceName, &HealthStatus{
		ServiceName: serviceName,
		Healthy:     true,
		LastCheck:   time.Now(),
		ToolCount:   len(tools),
	})
}

func (m *HealthMonitor) setStatus(serviceName string, status *HealthStatus) {
	m.statusesMu.Lock()
	defer m.statusesMu.Unlock()
	m.statuses[serviceName] = status
}

// GetStatuses returns the current health status of all monitored services.
func (m *HealthMonitor) GetStatuses() map[string]*HealthStatus {
	m.statusesMu.RLock()
	defer m.statusesMu.RUnlock()
	result := make(map[string]*HealthStatus, len(m.statuses))
	for k, v := range m.statuses {
		cp := *v
		result[k] = &cp
	}
	return result
}

// IsHealthy returns true if every monitored (non-skipped) service is healthy.
// Returns false when no statuses exist yet (before the first check completes).
func (m *HealthMonitor) IsHealthy() bool {
	m.statusesMu.RLock()
	defer m.statusesMu.RUnlock()
	if len(m.statuses) == 0 {
		return false
	}
	for _, s := range m.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
