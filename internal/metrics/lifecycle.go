package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vultisig/tokensync/types"
)

// Run statuses
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Publish results
const (
	PublishPublished = "published"
	PublishManual    = "manual"
)

// LifecycleMetrics tracks workflow outcomes. A nil *LifecycleMetrics records nothing.
type LifecycleMetrics struct {
	runs          *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
	publishes     *prometheus.CounterVec
	expiry        *prometheus.GaugeVec
}

func NewLifecycleMetrics() *LifecycleMetrics {
	return &LifecycleMetrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tokensync",
				Subsystem: "workflow",
				Name:      "runs_total",
				Help:      "Total number of workflow runs by workflow and status",
			},
			[]string{"workflow", "status"},
		),
		stageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tokensync",
				Subsystem: "workflow",
				Name:      "stage_failures_total",
				Help:      "Total number of fatal workflow failures by stage",
			},
			[]string{"workflow", "stage"},
		),
		publishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tokensync",
				Subsystem: "vault",
				Name:      "publish_total",
				Help:      "Total number of vault publish attempts by result",
			},
			[]string{"result"}, // result: published, manual
		),
		expiry: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tokensync",
				Subsystem: "credential",
				Name:      "expiry_timestamp_seconds",
				Help:      "Unix timestamp at which the last handled credential expires",
			},
			[]string{"workflow"},
		),
	}
}

// RecordRun records a finished run; err is the workflow's terminal error, if any.
func (m *LifecycleMetrics) RecordRun(workflow string, err error) {
	if m == nil {
		return
	}
	if err == nil {
		m.runs.WithLabelValues(workflow, StatusSuccess).Inc()
		return
	}
	m.runs.WithLabelValues(workflow, StatusFailed).Inc()
	if stage, ok := types.FailedStage(err); ok {
		m.stageFailures.WithLabelValues(workflow, string(stage)).Inc()
	}
}

func (m *LifecycleMetrics) RecordPublish(published bool) {
	if m == nil {
		return
	}
	result := PublishManual
	if published {
		result = PublishPublished
	}
	m.publishes.WithLabelValues(result).Inc()
}

func (m *LifecycleMetrics) SetCredentialExpiry(workflow string, expiresAt time.Time) {
	if m == nil {
		return
	}
	m.expiry.WithLabelValues(workflow).Set(float64(expiresAt.Unix()))
}
