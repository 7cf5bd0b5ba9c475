package health

import (
	"context"
	"sync"
	"time"

	"github.com/pickflow/pickflow/internal/agents"
	"github.com/pickflow/pickflow/internal/core/domain"
	"github.com/pickflow/pickflow/internal/infra/storage"
)

// Status thresholds. An agent failing a few ticks in a row is degraded; a
// sustained failure streak or a long silence is critical.
const (
	degradedErrorStreak = 1
	criticalErrorStreak = 5
	silentFor           = 10 * time.Minute

	// Backlog thresholds for the outbox.
	outboxDegraded = 100
	outboxCritical = 1000
)

// Monitor aggregates health status from the agents and the storage backlog.
type Monitor struct {
	reporters  []agents.HealthReporting
	outbox     storage.NotificationRepository
	audit      storage.AuditRepository
	lastCheck  time.Time
	lastReport Report
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(
	reporters []agents.HealthReporting,
	outbox storage.NotificationRepository,
	audit storage.AuditRepository,
) *Monitor {
	return &Monitor{
		reporters: reporters,
		outbox:    outbox,
		audit:     audit,
	}
}

// CheckHealth builds the full report. Checks are rate limited to once per 10s
// so scraping /health cannot hammer the database.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 10*time.Second && m.lastReport.Agents != nil {
		return m.lastReport
	}

	report := Report{
		SystemStatus: StatusHealthy,
		Agents:       make(map[string]AgentHealth),
	}

	for _, r := range m.reporters {
		status := r.Health()
		health := AgentHealth{
			Agent:             status.Agent,
			Status:            agentStatus(status),
			LastSuccess:       status.LastSuccess,
			ConsecutiveErrors: status.ConsecutiveErrors,
			LastError:         status.LastError,
		}
		report.Agents[status.Agent] = health
		report.SystemStatus = worse(report.SystemStatus, health.Status)
	}

	if counts, err := m.outbox.CountByStatus(ctx, domain.NotificationPending); err == nil {
		for _, n := range counts {
			report.OutboxPending += n
		}
		switch {
		case report.OutboxPending > outboxCritical:
			report.SystemStatus = worse(report.SystemStatus, StatusCritical)
		case report.OutboxPending > outboxDegraded:
			report.SystemStatus = worse(report.SystemStatus, StatusDegraded)
		}
	}

	if open, err := m.audit.ListOpen(ctx); err == nil {
		report.OpenFindings = len(open)
		if report.OpenFindings > 0 {
			report.SystemStatus = worse(report.SystemStatus, StatusDegraded)
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

// agentStatus maps one agent's tick history to a status.
func agentStatus(s agents.Status) SystemStatus {
	switch {
	case s.ConsecutiveErrors >= criticalErrorStreak:
		return StatusCritical
	case s.ConsecutiveErrors >= degradedErrorStreak:
		return StatusDegraded
	case !s.LastSuccess.IsZero() && time.Since(s.LastSuccess) > silentFor:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// worse returns the more severe of two statuses.
func worse(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
