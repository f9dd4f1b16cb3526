package models

import (
	"fmt"
	"time"
)

// InstanceStatus is the summary status of a workflow instance.
type InstanceStatus string

const (
	InstanceStatusActive    InstanceStatus = "active"
	InstanceStatusCompleted InstanceStatus = "completed"
	InstanceStatusCancelled InstanceStatus = "cancelled"
)

// StepStatus is the status of a single step instance.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusSkipped    StepStatus = "skipped"
)

// Terminal reports whether the step no longer blocks instance completion.
func (s StepStatus) Terminal() bool {
	return s == StepStatusCompleted || s == StepStatusSkipped
}

// Template categories that drive instance-level side effects.
const (
	CategoryFundFormation = "조합결성"
	CategoryLPTransfer    = "LP교체"
)

// WorkflowTemplate is a reusable, ordered process definition.
type WorkflowTemplate struct {
	ID                 int64              `json:"id"`
	Name               string             `json:"name"`
	Category           string             `json:"category"`
	TriggerDescription string             `json:"trigger_description,omitempty"`
	Steps              []WorkflowStep     `json:"steps"`
	Documents          []WorkflowDocument `json:"documents,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

// WorkflowStep is one step of a template. Timing, Name and Memo are free text
// and may carry a notice-type marker.
type WorkflowStep struct {
	ID               int64  `json:"id"`
	WorkflowID       int64  `json:"workflow_id"`
	Order            int    `json:"order"`
	Name             string `json:"name"`
	Timing           string `json:"timing"`
	TimingOffsetDays int    `json:"timing_offset_days"`
	EstimatedTime    string `json:"estimated_time,omitempty"`
	Quadrant         string `json:"quadrant,omitempty"`
	Memo             string `json:"memo,omitempty"`
}

// WorkflowDocument is a document an investment-linked instance seeds.
type WorkflowDocument struct {
	ID         int64  `json:"id"`
	WorkflowID int64  `json:"workflow_id"`
	Name       string `json:"name"`
	Required   bool   `json:"required"`
}

// WorkflowInstance is a live execution of a template.
type WorkflowInstance struct {
	ID          int64          `json:"id"`
	WorkflowID  int64          `json:"workflow_id"`
	Name        string         `json:"name"`
	TriggerDate time.Time      `json:"trigger_date"`
	Status      InstanceStatus `json:"status"`
	Memo        string         `json:"memo,omitempty"`

	InvestmentID *int64 `json:"investment_id,omitempty"`
	CompanyID    *int64 `json:"company_id,omitempty"`
	FundID       *int64 `json:"fund_id,omitempty"`
	GPEntityID   *int64 `json:"gp_entity_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// NoticeOverrides are the per-instance notice periods given at
	// instantiation. They are reapplied whenever step dates are recomputed.
	NoticeOverrides []NoticeOverride `json:"notice_overrides,omitempty"`

	// Populated on read; never persisted with the instance row.
	StepInstances []*WorkflowStepInstance `json:"step_instances,omitempty"`
}

// Progress renders "<completed>/<total>" over the loaded step instances.
func (i *WorkflowInstance) Progress() string {
	done := 0
	for _, si := range i.StepInstances {
		if si.Status == StepStatusCompleted {
			done++
		}
	}
	return fmt.Sprintf("%d/%d", done, len(i.StepInstances))
}

// WorkflowStepInstance is one step's realization within an instance.
type WorkflowStepInstance struct {
	ID             int64      `json:"id"`
	InstanceID     int64      `json:"instance_id"`
	WorkflowStepID int64      `json:"workflow_step_id"`
	CalculatedDate time.Time  `json:"calculated_date"`
	Status         StepStatus `json:"status"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ActualTime     string     `json:"actual_time,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	TaskID         *int64     `json:"task_id,omitempty"`

	// Denormalized from the source step on read.
	StepName   string `json:"step_name"`
	StepOrder  int    `json:"step_order"`
	StepTiming string `json:"step_timing,omitempty"`
}

// FundNoticePeriod is a fund-specific lead time for a notice type.
type FundNoticePeriod struct {
	ID           int64  `json:"id"`
	FundID       int64  `json:"fund_id"`
	NoticeType   string `json:"notice_type"`
	Label        string `json:"label"`
	BusinessDays int    `json:"business_days"`
	DayBasis     string `json:"day_basis"`
	Memo         string `json:"memo,omitempty"`
}

// NoticeOverride replaces or adds one notice period for a single instance.
type NoticeOverride struct {
	NoticeType   string `json:"notice_type"`
	BusinessDays int    `json:"business_days"`
	DayBasis     string `json:"day_basis,omitempty"`
}

// Day bases for notice periods.
const (
	DayBasisBusiness = "business"
	DayBasisCalendar = "calendar"
)
