package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestMetricsNoopProvider(t *testing.T) {
	m, err := NewMetricsWithProvider(noop.NewMeterProvider())
	require.NoError(t, err)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.Instantiated(ctx, "조합결성")
		m.StepCompleted(ctx)
		m.StepUndone(ctx)
		m.Cancelled(ctx)
		m.Deleted(ctx)
		m.SideEffect(ctx, "fund_formation")
	})
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.StepCompleted(context.Background())
	})
}
