package mcp

import (
	"bytes"
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundops/backend/internal/logging"
	"fundops/backend/internal/repository"
	"fundops/backend/internal/services"
	"fundops/backend/pkg/models"
)

func newCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func setup(t *testing.T) (*Server, *models.WorkflowTemplate) {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	logger := logging.NewWithWriter(&bytes.Buffer{}, "error")
	tpl, err := services.NewTemplateService(store, logger, nil).CreateTemplate(ctx, &models.WorkflowTemplate{
		Name: "결성 절차",
		Steps: []models.WorkflowStep{
			{Order: 1, Name: "규약 확정", TimingOffsetDays: -3},
			{Order: 2, Name: "결성총회"},
		},
	})
	require.NoError(t, err)
	return NewServer(services.NewWorkflowService(store, logger)), tpl
}

func structured[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.NotNil(t, res)
	require.False(t, res.IsError, "unexpected tool error: %+v", res.Content)
	v, ok := res.StructuredContent.(T)
	require.True(t, ok, "structured content is %T", res.StructuredContent)
	return v
}

func TestNewServerConfigured(t *testing.T) {
	s, _ := setup(t)
	assert.NotNil(t, s.GetMCPServer())
}

func TestToolLifecycle(t *testing.T) {
	s, tpl := setup(t)
	ctx := context.Background()

	res, err := s.handleInstantiate(ctx, newCallToolRequest("instantiate_workflow", map[string]any{
		"workflow_id":  float64(tpl.ID),
		"name":         "2호 결성",
		"trigger_date": "2025-03-10",
	}))
	require.NoError(t, err)
	inst := structured[InstanceSummary](t, res)
	assert.Equal(t, "0/2", inst.Progress)
	require.Len(t, inst.Steps, 2)
	assert.Equal(t, "2025-03-07", inst.Steps[0].CalculatedDate)
	assert.Equal(t, "in_progress", inst.Steps[0].Status)

	res, err = s.handleComplete(ctx, newCallToolRequest("complete_workflow_step", map[string]any{
		"instance_id":      float64(inst.ID),
		"step_instance_id": float64(inst.Steps[0].ID),
		"notes":            "확정",
	}))
	require.NoError(t, err)
	assert.Equal(t, "1/2", structured[InstanceSummary](t, res).Progress)

	res, err = s.handleUndo(ctx, newCallToolRequest("undo_workflow_step", map[string]any{
		"instance_id":      float64(inst.ID),
		"step_instance_id": float64(inst.Steps[0].ID),
	}))
	require.NoError(t, err)
	assert.Equal(t, "0/2", structured[InstanceSummary](t, res).Progress)

	res, err = s.handleCancel(ctx, newCallToolRequest("cancel_workflow_instance", map[string]any{
		"instance_id": float64(inst.ID),
	}))
	require.NoError(t, err)
	assert.Equal(t, "cancelled", structured[InstanceSummary](t, res).Status)

	res, err = s.handleList(ctx, newCallToolRequest("list_workflow_instances", map[string]any{"status": "cancelled"}))
	require.NoError(t, err)
	list := structured[InstanceList](t, res)
	require.Len(t, list.Instances, 1)
	assert.Equal(t, inst.ID, list.Instances[0].ID)
}

func TestToolErrors(t *testing.T) {
	s, tpl := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]any
	}{
		{"bad trigger date", s.handleInstantiate, map[string]any{"workflow_id": float64(tpl.ID), "name": "x", "trigger_date": "03/10/2025"}},
		{"missing workflow", s.handleInstantiate, map[string]any{"name": "x", "trigger_date": "2025-03-10"}},
		{"unknown template", s.handleInstantiate, map[string]any{"workflow_id": float64(9999), "name": "x", "trigger_date": "2025-03-10"}},
		{"unknown instance", s.handleComplete, map[string]any{"instance_id": float64(9999), "step_instance_id": float64(1)}},
		{"cancel unknown", s.handleCancel, map[string]any{"instance_id": float64(9999)}},
		{"bad status", s.handleList, map[string]any{"status": "paused"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.handler(ctx, newCallToolRequest("tool", tt.args))
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.True(t, res.IsError)
		})
	}
}
