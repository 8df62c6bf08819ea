package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/sirupsen/logrus"
)

const (
	DefaultJob = "tokensync"
	// GroupingLabel must not collide with a label of any pushed metric.
	GroupingLabel = "component"
)

// Config holds the pushgateway settings. Workflows are one-shot processes, so metrics
// are pushed at exit instead of scraped.
type Config struct {
	PushgatewayURL string `mapstructure:"pushgateway_url" json:"pushgateway_url,omitempty"`
	Job            string `mapstructure:"job" json:"job,omitempty"`
}

func (c Config) Enabled() bool {
	return c.PushgatewayURL != ""
}

// Registry holds the Prometheus registry of one workflow run
type Registry struct {
	registry *prometheus.Registry
	logger   *logrus.Logger
}

// NewRegistry creates a registry with the process collectors and lifecycle registered
func NewRegistry(lifecycle *LifecycleMetrics, logger *logrus.Logger) *Registry {
	registry := prometheus.NewRegistry()
	RegisterMetrics(lifecycle, registry, logger)
	return &Registry{
		registry: registry,
		logger:   logger,
	}
}

// Gatherer exposes the underlying registry for inspection
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Push sends the registry to the pushgateway under one group per binary. The
// lifecycle metrics carry their own workflow label, so the group key uses a
// different label name. It is a no-op when no pushgateway is configured.
func (r *Registry) Push(ctx context.Context, cfg Config, workflow string) error {
	if !cfg.Enabled() {
		r.logger.Debug("pushgateway not configured, skipping metrics push")
		return nil
	}
	job := cfg.Job
	if job == "" {
		job = DefaultJob
	}
	err := push.New(cfg.PushgatewayURL, job).
		Gatherer(r.registry).
		Grouping(GroupingLabel, workflow).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", cfg.PushgatewayURL, err)
	}
	r.logger.WithFields(logrus.Fields{
		"job":      job,
		"workflow": workflow,
	}).Info("metrics pushed")
	return nil
}
