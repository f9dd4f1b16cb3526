// Package telemetry holds the service's OpenTelemetry instruments. The server
// reads the global meter provider; installing an SDK provider and exporter is
// left to the deployment, and without one the no-op provider is used.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "fundops/backend/workflow"

// Metrics counts workflow lifecycle events.
type Metrics struct {
	instantiated metric.Int64Counter
	completed    metric.Int64Counter
	undone       metric.Int64Counter
	cancelled    metric.Int64Counter
	deleted      metric.Int64Counter
	sideEffects  metric.Int64Counter
}

// NewMetrics creates instruments from the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithProvider(otel.GetMeterProvider())
}

// NewMetricsWithProvider creates instruments from mp.
func NewMetricsWithProvider(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error
	if m.instantiated, err = meter.Int64Counter("workflow.instances.instantiated",
		metric.WithDescription("Workflow instances created")); err != nil {
		return nil, err
	}
	if m.completed, err = meter.Int64Counter("workflow.steps.completed",
		metric.WithDescription("Step instances completed")); err != nil {
		return nil, err
	}
	if m.undone, err = meter.Int64Counter("workflow.steps.undone",
		metric.WithDescription("Step completions undone")); err != nil {
		return nil, err
	}
	if m.cancelled, err = meter.Int64Counter("workflow.instances.cancelled",
		metric.WithDescription("Workflow instances cancelled")); err != nil {
		return nil, err
	}
	if m.deleted, err = meter.Int64Counter("workflow.instances.deleted",
		metric.WithDescription("Workflow instances deleted")); err != nil {
		return nil, err
	}
	if m.sideEffects, err = meter.Int64Counter("workflow.side_effects.applied",
		metric.WithDescription("Side effect rules applied")); err != nil {
		return nil, err
	}
	return m, nil
}

// add must only be called on a non-nil m.
func (m *Metrics) add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// Instantiated counts a new instance of a template in category.
func (m *Metrics) Instantiated(ctx context.Context, category string) {
	if m != nil {
		m.add(ctx, m.instantiated, attribute.String("category", category))
	}
}

// StepCompleted counts a step completion.
func (m *Metrics) StepCompleted(ctx context.Context) {
	if m != nil {
		m.add(ctx, m.completed)
	}
}

// StepUndone counts an undone step completion.
func (m *Metrics) StepUndone(ctx context.Context) {
	if m != nil {
		m.add(ctx, m.undone)
	}
}

// Cancelled counts a cancelled instance.
func (m *Metrics) Cancelled(ctx context.Context) {
	if m != nil {
		m.add(ctx, m.cancelled)
	}
}

// Deleted counts a deleted instance.
func (m *Metrics) Deleted(ctx context.Context) {
	if m != nil {
		m.add(ctx, m.deleted)
	}
}

// SideEffect counts an applied side effect rule.
func (m *Metrics) SideEffect(ctx context.Context, rule string) {
	if m != nil {
		m.add(ctx, m.sideEffects, attribute.String("rule", rule))
	}
}
