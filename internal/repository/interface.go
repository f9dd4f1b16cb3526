package repository

import (
	"context"
	"errors"

	"fundops/backend/pkg/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// TxManager runs fn as one unit of work. Store calls made with the context
// passed to fn join the same transaction; every write is executed
// immediately, so later reads in fn observe it. Nested calls join the
// outer unit of work.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// InstanceFilter narrows ListInstances. Nil fields are ignored.
type InstanceFilter struct {
	WorkflowID   *int64
	InvestmentID *int64
	CompanyID    *int64
	FundID       *int64
	GPEntityID   *int64
}

// TemplateStore persists workflow templates with their steps and documents.
type TemplateStore interface {
	// CreateTemplate saves a template, its steps and documents, assigning ids.
	CreateTemplate(ctx context.Context, tpl *models.WorkflowTemplate) error
	// GetTemplate loads a template with steps ordered by step order.
	GetTemplate(ctx context.Context, id int64) (*models.WorkflowTemplate, error)
	// ListTemplates loads every template with its steps.
	ListTemplates(ctx context.Context) ([]*models.WorkflowTemplate, error)
	// DeleteTemplate removes a template with its steps and documents.
	DeleteTemplate(ctx context.Context, id int64) error
	// CountInstances counts instances referencing a template.
	CountInstances(ctx context.Context, templateID int64) (int, error)
}

// InstanceStore persists workflow instances and their step instances.
type InstanceStore interface {
	CreateInstance(ctx context.Context, inst *models.WorkflowInstance) error
	// GetInstance loads the instance row only; StepInstances stay nil.
	GetInstance(ctx context.Context, id int64) (*models.WorkflowInstance, error)
	ListInstances(ctx context.Context, filter InstanceFilter) ([]*models.WorkflowInstance, error)
	UpdateInstance(ctx context.Context, inst *models.WorkflowInstance) error
	DeleteInstance(ctx context.Context, id int64) error

	CreateStepInstance(ctx context.Context, si *models.WorkflowStepInstance) error
	GetStepInstance(ctx context.Context, id int64) (*models.WorkflowStepInstance, error)
	// ListStepInstances returns an instance's steps ordered by source step order.
	ListStepInstances(ctx context.Context, instanceID int64) ([]*models.WorkflowStepInstance, error)
	UpdateStepInstance(ctx context.Context, si *models.WorkflowStepInstance) error
	DeleteStepInstances(ctx context.Context, instanceID int64) error
}

// TaskStore persists tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id int64) error
}

// FundStore reads and updates funds and their notice periods.
type FundStore interface {
	GetFund(ctx context.Context, id int64) (*models.Fund, error)
	// LockFund reads a fund holding a row lock until the unit of work ends.
	LockFund(ctx context.Context, id int64) (*models.Fund, error)
	UpdateFund(ctx context.Context, fund *models.Fund) error
	ListNoticePeriods(ctx context.Context, fundID int64) ([]models.FundNoticePeriod, error)
}

// LPStore reads and updates limited partners.
type LPStore interface {
	GetLP(ctx context.Context, id int64) (*models.LP, error)
	// LockLP reads an LP holding a row lock until the unit of work ends.
	LockLP(ctx context.Context, id int64) (*models.LP, error)
	CreateLP(ctx context.Context, lp *models.LP) error
	UpdateLP(ctx context.Context, lp *models.LP) error
}

// CapitalCallStore reads capital calls and posts item payments.
type CapitalCallStore interface {
	GetCapitalCall(ctx context.Context, id int64) (*models.CapitalCall, error)
	ListCapitalCallItems(ctx context.Context, capitalCallID int64) ([]*models.CapitalCallItem, error)
	UpdateCapitalCallItem(ctx context.Context, item *models.CapitalCallItem) error
	// ClearCapitalCallWorkflowLinks drops references to a deleted instance.
	ClearCapitalCallWorkflowLinks(ctx context.Context, instanceID int64) error
}

// LPTransferStore reads and updates LP substitutions.
type LPTransferStore interface {
	GetLPTransferByWorkflowInstance(ctx context.Context, instanceID int64) (*models.LPTransfer, error)
	UpdateLPTransfer(ctx context.Context, transfer *models.LPTransfer) error
	// ClearLPTransferWorkflowLinks drops references to a deleted instance.
	ClearLPTransferWorkflowLinks(ctx context.Context, instanceID int64) error
}

// EntityStore resolves the entities an instance may link to.
type EntityStore interface {
	GetInvestment(ctx context.Context, id int64) (*models.Investment, error)
	GetCompany(ctx context.Context, id int64) (*models.Company, error)
	GetGPEntity(ctx context.Context, id int64) (*models.GPEntity, error)
	ListInvestmentDocuments(ctx context.Context, investmentID int64) ([]*models.InvestmentDocument, error)
	CreateInvestmentDocument(ctx context.Context, doc *models.InvestmentDocument) error
}

// Seeder creates the collaborator rows owned by the CRUD routers. It is used
// by cmd/seed and tests.
type Seeder interface {
	CreateFund(ctx context.Context, fund *models.Fund) error
	CreateNoticePeriod(ctx context.Context, period *models.FundNoticePeriod) error
	CreateCompany(ctx context.Context, company *models.Company) error
	CreateInvestment(ctx context.Context, inv *models.Investment) error
	CreateGPEntity(ctx context.Context, gp *models.GPEntity) error
	CreateCapitalCall(ctx context.Context, call *models.CapitalCall, items []*models.CapitalCallItem) error
	CreateLPTransfer(ctx context.Context, transfer *models.LPTransfer) error
}

// Repository is the full storage surface of the service.
type Repository interface {
	TxManager
	TemplateStore
	InstanceStore
	TaskStore
	FundStore
	LPStore
	CapitalCallStore
	LPTransferStore
	EntityStore
	Seeder
	Ping(ctx context.Context) error
}
