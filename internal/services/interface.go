package services

import (
	"context"
	"time"

	"fundops/backend/internal/notice"
	"fundops/backend/pkg/models"
)

// Links are the optional entity links of an instance. At most one primary
// link is allowed: an investment (which implies its company and fund), a
// company and/or fund, or a GP entity.
type Links struct {
	InvestmentID *int64
	CompanyID    *int64
	FundID       *int64
	GPEntityID   *int64
}

// InstantiateRequest creates an instance from a template.
type InstantiateRequest struct {
	WorkflowID  int64
	Name        string
	TriggerDate time.Time
	Memo        string
	Links       Links
	// NoticeOverrides layer over the fund's notice periods for this instance.
	NoticeOverrides []notice.Override
}

// UpdateInstanceRequest renames or retargets an active instance. Nil fields
// are left unchanged.
type UpdateInstanceRequest struct {
	Name        *string
	TriggerDate *time.Time
	Memo        *string
}

// CompleteStepRequest carries the completion details of a step.
type CompleteStepRequest struct {
	ActualTime string
	Notes      string
}

// ListInstancesRequest filters instances. Status is applied after
// reconciliation.
type ListInstancesRequest struct {
	Status string
	Links
	WorkflowID *int64
}

// EntityKind names an entity instances can be linked to.
type EntityKind string

const (
	EntityFund       EntityKind = "fund"
	EntityInvestment EntityKind = "investment"
	EntityCompany    EntityKind = "company"
	EntityGPEntity   EntityKind = "gp_entity"
)

// ReleaseResult reports what ReleaseEntity did.
type ReleaseResult struct {
	Deleted  []int64 `json:"deleted"`
	Detached []int64 `json:"detached"`
}

// WorkflowEngine is the instance lifecycle surface used by the transports.
type WorkflowEngine interface {
	Instantiate(ctx context.Context, req InstantiateRequest) (*models.WorkflowInstance, error)
	GetInstance(ctx context.Context, id int64) (*models.WorkflowInstance, error)
	ListInstances(ctx context.Context, req ListInstancesRequest) ([]*models.WorkflowInstance, error)
	UpdateInstance(ctx context.Context, id int64, req UpdateInstanceRequest) (*models.WorkflowInstance, error)
	CompleteStep(ctx context.Context, instanceID, stepInstanceID int64, req CompleteStepRequest) (*models.WorkflowInstance, error)
	UndoStep(ctx context.Context, instanceID, stepInstanceID int64) (*models.WorkflowInstance, error)
	CancelInstance(ctx context.Context, id int64) (*models.WorkflowInstance, error)
	DeleteInstance(ctx context.Context, id int64) error
	ReleaseEntity(ctx context.Context, kind EntityKind, id int64) (*ReleaseResult, error)
}

// TemplateManager manages workflow templates.
type TemplateManager interface {
	CreateTemplate(ctx context.Context, tpl *models.WorkflowTemplate) (*models.WorkflowTemplate, error)
	GetTemplate(ctx context.Context, id int64) (*models.WorkflowTemplate, error)
	ListTemplates(ctx context.Context) ([]*models.WorkflowTemplate, error)
	DeleteTemplate(ctx context.Context, id int64) error
}
