package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OddsSnapshotsIngested tracks odds rows written per league and book
	OddsSnapshotsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickflow_odds_snapshots_total",
			Help: "Total number of odds snapshots ingested",
		},
		[]string{"league", "book"},
	)

	// PicksGraded tracks graded picks per league and result
	PicksGraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickflow_picks_graded_total",
			Help: "Total number of picks graded",
		},
		[]string{"league", "result"},
	)

	// NotificationsSent tracks outbox deliveries per channel and status
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickflow_notifications_total",
			Help: "Total number of notification delivery attempts",
		},
		[]string{"channel", "status"},
	)

	// RetryAttempts tracks individual attempts made by the retry executor
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickflow_retry_attempts_total",
			Help: "Total number of attempts made by the retry executor",
		},
		[]string{"label"},
	)

	// RetryExhausted tracks operations that spent all attempts
	RetryExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickflow_retry_exhausted_total",
			Help: "Total number of operations that exhausted their retry budget",
		},
		[]string{"label"},
	)

	// OutboxDepth tracks pending notifications per channel
	OutboxDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pickflow_outbox_depth",
			Help: "Number of pending notifications in the outbox",
		},
		[]string{"channel"},
	)

	// AuditFindingsOpen tracks unresolved findings per kind
	AuditFindingsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pickflow_audit_findings_open",
			Help: "Number of unresolved audit findings",
		},
		[]string{"kind"},
	)

	// AgentTickDuration tracks how long one agent tick takes
	AgentTickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pickflow_agent_tick_seconds",
			Help:    "Duration of one agent processing tick",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"agent"},
	)

	// DBConnectionPoolUsage tracks connection pool saturation
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pickflow_db_pool_usage_percent",
			Help: "Percentage of the database connection pool in use",
		},
	)
)
