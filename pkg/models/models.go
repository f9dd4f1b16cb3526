// Package models defines the domain models for the fund back-office workflow service
package models

import (
	"time"
)

// TaskStatus represents the status of a calendar task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Task is a deadline-bearing unit of work. Workflow steps own one each.
type Task struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	EstimatedTime string     `json:"estimated_time,omitempty"`
	Quadrant      string     `json:"quadrant,omitempty"`
	Memo          string     `json:"memo,omitempty"`
	Status        TaskStatus `json:"status"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ActualTime    string     `json:"actual_time,omitempty"`

	// Back-reference to the owning workflow; cleared when the instance is
	// deleted but the task is kept as history.
	WorkflowInstanceID *int64 `json:"workflow_instance_id,omitempty"`
	WorkflowStepOrder  *int   `json:"workflow_step_order,omitempty"`

	FundID       *int64 `json:"fund_id,omitempty"`
	InvestmentID *int64 `json:"investment_id,omitempty"`
	GPEntityID   *int64 `json:"gp_entity_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// FundStatus represents the lifecycle state of a fund
type FundStatus string

const (
	FundStatusForming    FundStatus = "forming"
	FundStatusActive     FundStatus = "active"
	FundStatusDissolved  FundStatus = "dissolved"
	FundStatusLiquidated FundStatus = "liquidated"
)

// Fund is a venture fund (조합)
type Fund struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Status        FundStatus `json:"status"`
	FormationDate *time.Time `json:"formation_date,omitempty"`
	Commitment    int64      `json:"commitment_total"`
}

// LP is a limited partner of a fund. Amounts are KRW.
type LP struct {
	ID             int64  `json:"id"`
	FundID         int64  `json:"fund_id"`
	Name           string `json:"name"`
	Type           string `json:"type,omitempty"`
	BusinessNumber string `json:"business_number,omitempty"`
	Commitment     int64  `json:"commitment"`
	PaidIn         int64  `json:"paid_in"`
}

// CapitalCall is a drawdown notice issued to a fund's LPs
type CapitalCall struct {
	ID                       int64     `json:"id"`
	FundID                   int64     `json:"fund_id"`
	CallDate                 time.Time `json:"call_date"`
	CallType                 string    `json:"call_type,omitempty"`
	TotalAmount              int64     `json:"total_amount"`
	LinkedWorkflowInstanceID *int64    `json:"linked_workflow_instance_id,omitempty"`
}

// CapitalCallItem is one LP's share of a capital call
type CapitalCallItem struct {
	ID            int64      `json:"id"`
	CapitalCallID int64      `json:"capital_call_id"`
	LPID          int64      `json:"lp_id"`
	Amount        int64      `json:"amount"`
	Paid          bool       `json:"paid"`
	PaidDate      *time.Time `json:"paid_date,omitempty"`
}

// LPTransferStatus represents the state of an LP substitution
type LPTransferStatus string

const (
	LPTransferStatusPending    LPTransferStatus = "pending"
	LPTransferStatusInProgress LPTransferStatus = "in_progress"
	LPTransferStatusCompleted  LPTransferStatus = "completed"
	LPTransferStatusCancelled  LPTransferStatus = "cancelled"
)

// LPTransfer moves (part of) an LP's commitment to another LP. When ToLPID
// is nil the incoming LP is created from the ToLP* fields on completion.
type LPTransfer struct {
	ID                 int64            `json:"id"`
	FundID             int64            `json:"fund_id"`
	FromLPID           int64            `json:"from_lp_id"`
	ToLPID             *int64           `json:"to_lp_id,omitempty"`
	ToLPName           string           `json:"to_lp_name,omitempty"`
	ToLPType           string           `json:"to_lp_type,omitempty"`
	ToLPBusinessNumber string           `json:"to_lp_business_number,omitempty"`
	TransferAmount     int64            `json:"transfer_amount"`
	Status             LPTransferStatus `json:"status"`
	WorkflowInstanceID *int64           `json:"workflow_instance_id,omitempty"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
}

// Company is a portfolio company
type Company struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Investment is a fund's position in a company
type Investment struct {
	ID        int64 `json:"id"`
	FundID    int64 `json:"fund_id"`
	CompanyID int64 `json:"company_id"`
}

// GPEntity is the general partner (management company) itself
type GPEntity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// InvestmentDocumentStatus represents collection state of an investment document
type InvestmentDocumentStatus string

const (
	DocumentStatusPending   InvestmentDocumentStatus = "pending"
	DocumentStatusCollected InvestmentDocumentStatus = "collected"
)

// InvestmentDocument tracks a document required for an investment
type InvestmentDocument struct {
	ID           int64                    `json:"id"`
	InvestmentID int64                    `json:"investment_id"`
	Name         string                   `json:"name"`
	DocType      string                   `json:"doc_type,omitempty"`
	Status       InvestmentDocumentStatus `json:"status"`
	Note         string                   `json:"note,omitempty"`
}

// HealthStatus represents service health
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}
