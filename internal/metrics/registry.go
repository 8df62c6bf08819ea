package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// Workflow names used as the workflow label
const (
	WorkflowIssuance = "issuance"
	WorkflowSync     = "sync"
)

// RegisterMetrics registers the process collectors and the lifecycle metrics with registry
func RegisterMetrics(lifecycle *LifecycleMetrics, registry *prometheus.Registry, logger *logrus.Logger) {
	registerIfNotExists(collectors.NewGoCollector(), "go_collector", registry, logger)
	registerIfNotExists(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector", registry, logger)

	if lifecycle == nil {
		return
	}
	registerIfNotExists(lifecycle.runs, "workflow_runs_total", registry, logger)
	registerIfNotExists(lifecycle.stageFailures, "workflow_stage_failures_total", registry, logger)
	registerIfNotExists(lifecycle.publishes, "vault_publish_total", registry, logger)
	registerIfNotExists(lifecycle.expiry, "credential_expiry_timestamp_seconds", registry, logger)
}

// registerIfNotExists registers a collector if it's not already registered
func registerIfNotExists(collector prometheus.Collector, name string, registry *prometheus.Registry, logger *logrus.Logger) {
	if err := registry.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if !errors.As(err, &alreadyRegErr) {
			logger.Errorf("Failed to register %s: %v", name, err)
		}
	}
}
