// Package health provides system health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// AgentHealth contains health metrics for one background agent.
type AgentHealth struct {
	Agent             string       `json:"agent"`
	Status            SystemStatus `json:"status"`
	LastSuccess       time.Time    `json:"last_success"`
	ConsecutiveErrors int          `json:"consecutive_errors"`
	LastError         string       `json:"last_error,omitempty"`
}

// Report contains the full system health report.
type Report struct {
	SystemStatus  SystemStatus           `json:"system_status"`
	Agents        map[string]AgentHealth `json:"agents"`
	OutboxPending int                    `json:"outbox_pending"`
	OpenFindings  int                    `json:"open_findings"`
}
