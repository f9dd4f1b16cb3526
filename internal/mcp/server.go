// Package mcp exposes the workflow engine as MCP tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"fundops/backend/internal/services"
	"fundops/backend/pkg/models"
)

const (
	serverName    = "fundops workflows"
	serverVersion = "1.0.0"
)

// Server serves the workflow engine as MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	workflows services.WorkflowEngine
}

// NewServer creates a Server with every workflow tool registered.
func NewServer(workflows services.WorkflowEngine) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			serverName,
			serverVersion,
			server.WithToolCapabilities(true),
		),
		workflows: workflows,
	}

	s.registerTools()
	return s
}

// GetMCPServer returns the underlying server for mounting on a transport.
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// ListInstancesInput filters list_workflow_instances.
type ListInstancesInput struct {
	Status     string `json:"status,omitempty"`
	FundID     *int64 `json:"fund_id,omitempty"`
	WorkflowID *int64 `json:"workflow_id,omitempty"`
}

// InstantiateInput is the input of instantiate_workflow.
type InstantiateInput struct {
	WorkflowID   int64  `json:"workflow_id"`
	Name         string `json:"name"`
	TriggerDate  string `json:"trigger_date"`
	Memo         string `json:"memo,omitempty"`
	FundID       *int64 `json:"fund_id,omitempty"`
	InvestmentID *int64 `json:"investment_id,omitempty"`
	CompanyID    *int64 `json:"company_id,omitempty"`
	GPEntityID   *int64 `json:"gp_entity_id,omitempty"`
}

// StepInput addresses one step instance.
type StepInput struct {
	InstanceID     int64  `json:"instance_id"`
	StepInstanceID int64  `json:"step_instance_id"`
	ActualTime     string `json:"actual_time,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// InstanceInput addresses one instance.
type InstanceInput struct {
	InstanceID int64 `json:"instance_id"`
}

// InstanceSummary is the tool view of an instance.
type InstanceSummary struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Status      string        `json:"status"`
	TriggerDate string        `json:"trigger_date"`
	Progress    string        `json:"progress"`
	Steps       []StepSummary `json:"steps"`
}

// StepSummary is the tool view of a step instance.
type StepSummary struct {
	ID             int64  `json:"id"`
	Order          int    `json:"order"`
	Name           string `json:"name"`
	CalculatedDate string `json:"calculated_date"`
	Status         string `json:"status"`
}

// InstanceList wraps list results; structured content must be an object.
type InstanceList struct {
	Instances []InstanceSummary `json:"instances"`
}

func summarize(inst *models.WorkflowInstance) InstanceSummary {
	out := InstanceSummary{
		ID:          inst.ID,
		Name:        inst.Name,
		Status:      string(inst.Status),
		TriggerDate: inst.TriggerDate.Format(time.DateOnly),
		Progress:    inst.Progress(),
		Steps:       make([]StepSummary, 0, len(inst.StepInstances)),
	}
	for _, si := range inst.StepInstances {
		out.Steps = append(out.Steps, StepSummary{
			ID:             si.ID,
			Order:          si.StepOrder,
			Name:           si.StepName,
			CalculatedDate: si.CalculatedDate.Format(time.DateOnly),
			Status:         string(si.Status),
		})
	}
	return out
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflow_instances",
			mcp.WithDescription("List workflow instances with their steps and progress"),
			mcp.WithString("status", mcp.Description("Filter by status"), mcp.Enum("active", "completed", "cancelled")),
			mcp.WithNumber("fund_id", mcp.Description("Only instances linked to this fund")),
			mcp.WithNumber("workflow_id", mcp.Description("Only instances of this template")),
		),
		s.handleList,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"instantiate_workflow",
			mcp.WithDescription("Start a workflow from a template on a trigger date"),
			mcp.WithNumber("workflow_id", mcp.Required(), mcp.Description("Template id")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Instance name, used as the task title prefix")),
			mcp.WithString("trigger_date", mcp.Required(), mcp.Description("Trigger date, YYYY-MM-DD")),
			mcp.WithString("memo", mcp.Description("Free text; capital_call_id=<N> links a capital call")),
			mcp.WithNumber("fund_id", mcp.Description("Linked fund")),
			mcp.WithNumber("investment_id", mcp.Description("Linked investment")),
			mcp.WithNumber("company_id", mcp.Description("Linked company")),
			mcp.WithNumber("gp_entity_id", mcp.Description("Linked GP entity")),
		),
		s.handleInstantiate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"complete_workflow_step",
			mcp.WithDescription("Complete the next step of a workflow instance"),
			mcp.WithNumber("instance_id", mcp.Required()),
			mcp.WithNumber("step_instance_id", mcp.Required()),
			mcp.WithString("actual_time", mcp.Description("Time actually spent")),
			mcp.WithString("notes", mcp.Description("Completion notes, appended to the task memo")),
		),
		s.handleComplete,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"undo_workflow_step",
			mcp.WithDescription("Revert a completed step to pending"),
			mcp.WithNumber("instance_id", mcp.Required()),
			mcp.WithNumber("step_instance_id", mcp.Required()),
		),
		s.handleUndo,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"cancel_workflow_instance",
			mcp.WithDescription("Cancel a workflow instance and drop its unstarted tasks"),
			mcp.WithNumber("instance_id", mcp.Required()),
		),
		s.handleCancel,
	)
}

// toolError renders service failures as tool errors; only unexpected
// failures carry the wrapped error.
func toolError(action string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidTransition):
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultErrorFromErr(action+" failed", err)
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input ListInstancesInput
	if err := request.BindArguments(&input); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	list, err := s.workflows.ListInstances(ctx, services.ListInstancesRequest{
		Status:     input.Status,
		Links:      services.Links{FundID: input.FundID},
		WorkflowID: input.WorkflowID,
	})
	if err != nil {
		return toolError("list", err), nil
	}
	out := InstanceList{Instances: make([]InstanceSummary, 0, len(list))}
	for _, inst := range list {
		out.Instances = append(out.Instances, summarize(inst))
	}
	return mcp.NewToolResultStructuredOnly(out), nil
}

func (s *Server) handleInstantiate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input InstantiateInput
	if err := request.BindArguments(&input); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	if input.WorkflowID <= 0 {
		return mcp.NewToolResultError("Missing required parameter: workflow_id"), nil
	}
	trigger, err := time.Parse(time.DateOnly, input.TriggerDate)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("trigger_date must be YYYY-MM-DD, got %q", input.TriggerDate)), nil
	}

	inst, err := s.workflows.Instantiate(ctx, services.InstantiateRequest{
		WorkflowID:  input.WorkflowID,
		Name:        input.Name,
		TriggerDate: trigger,
		Memo:        input.Memo,
		Links: services.Links{
			InvestmentID: input.InvestmentID,
			CompanyID:    input.CompanyID,
			FundID:       input.FundID,
			GPEntityID:   input.GPEntityID,
		},
	})
	if err != nil {
		return toolError("instantiate", err), nil
	}
	return mcp.NewToolResultStructuredOnly(summarize(inst)), nil
}

func (s *Server) handleComplete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input StepInput
	if err := request.BindArguments(&input); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	inst, err := s.workflows.CompleteStep(ctx, input.InstanceID, input.StepInstanceID, services.CompleteStepRequest{
		ActualTime: input.ActualTime,
		Notes:      input.Notes,
	})
	if err != nil {
		return toolError("complete step", err), nil
	}
	return mcp.NewToolResultStructuredOnly(summarize(inst)), nil
}

func (s *Server) handleUndo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input StepInput
	if err := request.BindArguments(&input); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	inst, err := s.workflows.UndoStep(ctx, input.InstanceID, input.StepInstanceID)
	if err != nil {
		return toolError("undo step", err), nil
	}
	return mcp.NewToolResultStructuredOnly(summarize(inst)), nil
}

func (s *Server) handleCancel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input InstanceInput
	if err := request.BindArguments(&input); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	inst, err := s.workflows.CancelInstance(ctx, input.InstanceID)
	if err != nil {
		return toolError("cancel", err), nil
	}
	return mcp.NewToolResultStructuredOnly(summarize(inst)), nil
}

// MountHTTPHandlers serves the MCP server over SSE under /mcp.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
