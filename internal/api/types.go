package api

import (
	"time"

	"github.com/oapi-codegen/runtime/types"

	"fundops/backend/internal/notice"
	"fundops/backend/internal/services"
	"fundops/backend/pkg/models"
)

// LinkFields are the optional entity links accepted on instantiate and list.
type LinkFields struct {
	InvestmentID *int64 `json:"investment_id,omitempty" validate:"omitempty,gt=0"`
	CompanyID    *int64 `json:"company_id,omitempty"    validate:"omitempty,gt=0"`
	FundID       *int64 `json:"fund_id,omitempty"       validate:"omitempty,gt=0"`
	GPEntityID   *int64 `json:"gp_entity_id,omitempty"  validate:"omitempty,gt=0"`
}

func (l LinkFields) links() services.Links {
	return services.Links{
		InvestmentID: l.InvestmentID,
		CompanyID:    l.CompanyID,
		FundID:       l.FundID,
		GPEntityID:   l.GPEntityID,
	}
}

// NoticeOverride is a per-instance lead time for one notice type.
type NoticeOverride struct {
	NoticeType   string `json:"notice_type"   validate:"required"`
	BusinessDays int    `json:"business_days" validate:"gte=0,lte=365"`
	DayBasis     string `json:"day_basis,omitempty" validate:"omitempty,oneof=business calendar"`
}

// InstantiateRequest is the body of POST /workflows/{id}/instantiate.
type InstantiateRequest struct {
	Name            string           `json:"name"         validate:"required"`
	TriggerDate     *types.Date      `json:"trigger_date" validate:"required"`
	Memo            string           `json:"memo,omitempty"`
	NoticeOverrides []NoticeOverride `json:"notice_overrides,omitempty" validate:"dive"`
	LinkFields
}

func (r InstantiateRequest) toService(workflowID int64) services.InstantiateRequest {
	req := services.InstantiateRequest{
		WorkflowID:  workflowID,
		Name:        r.Name,
		TriggerDate: r.TriggerDate.Time,
		Memo:        r.Memo,
		Links:       r.links(),
	}
	for _, o := range r.NoticeOverrides {
		req.NoticeOverrides = append(req.NoticeOverrides, notice.Override{
			NoticeType:   o.NoticeType,
			BusinessDays: o.BusinessDays,
			DayBasis:     o.DayBasis,
		})
	}
	return req
}

// UpdateInstanceRequest is the body of PUT /workflow-instances/{id}.
type UpdateInstanceRequest struct {
	Name        *string     `json:"name,omitempty" validate:"omitempty,min=1"`
	TriggerDate *types.Date `json:"trigger_date,omitempty"`
	Memo        *string     `json:"memo,omitempty"`
}

func (r UpdateInstanceRequest) toService() services.UpdateInstanceRequest {
	req := services.UpdateInstanceRequest{Name: r.Name, Memo: r.Memo}
	if r.TriggerDate != nil {
		t := r.TriggerDate.Time
		req.TriggerDate = &t
	}
	return req
}

// CompleteStepRequest is the optional body of the complete endpoint.
type CompleteStepRequest struct {
	ActualTime string `json:"actual_time,omitempty" validate:"max=50"`
	Notes      string `json:"notes,omitempty"`
}

// ReleaseEntityRequest is the body of POST /workflow-instances/release.
type ReleaseEntityRequest struct {
	Kind string `json:"kind" validate:"required,oneof=fund investment company gp_entity"`
	ID   int64  `json:"id"   validate:"required,gt=0"`
}

// ListInstancesQuery are the query parameters of GET /workflow-instances.
type ListInstancesQuery struct {
	Status     string `query:"status"      validate:"omitempty,oneof=active completed cancelled"`
	WorkflowID *int64 `query:"workflow_id" validate:"omitempty,gt=0"`
	LinkFields
}

// CreateStepRequest is one step of a new template.
type CreateStepRequest struct {
	Order            int    `json:"order"              validate:"gte=1"`
	Name             string `json:"name"               validate:"required"`
	Timing           string `json:"timing"`
	TimingOffsetDays int    `json:"timing_offset_days" validate:"gte=-3650,lte=3650"`
	EstimatedTime    string `json:"estimated_time,omitempty"`
	Quadrant         string `json:"quadrant,omitempty"`
	Memo             string `json:"memo,omitempty"`
}

// CreateDocumentRequest is one document of a new template.
type CreateDocumentRequest struct {
	Name     string `json:"name" validate:"required"`
	Required bool   `json:"required"`
}

// CreateTemplateRequest is the body of POST /workflows.
type CreateTemplateRequest struct {
	Name               string                  `json:"name"     validate:"required"`
	Category           string                  `json:"category"`
	TriggerDescription string                  `json:"trigger_description,omitempty"`
	Steps              []CreateStepRequest     `json:"steps"     validate:"required,min=1,dive"`
	Documents          []CreateDocumentRequest `json:"documents" validate:"dive"`
}

func (r CreateTemplateRequest) toModel() *models.WorkflowTemplate {
	tpl := &models.WorkflowTemplate{
		Name:               r.Name,
		Category:           r.Category,
		TriggerDescription: r.TriggerDescription,
	}
	for _, st := range r.Steps {
		tpl.Steps = append(tpl.Steps, models.WorkflowStep{
			Order:            st.Order,
			Name:             st.Name,
			Timing:           st.Timing,
			TimingOffsetDays: st.TimingOffsetDays,
			EstimatedTime:    st.EstimatedTime,
			Quadrant:         st.Quadrant,
			Memo:             st.Memo,
		})
	}
	for _, d := range r.Documents {
		tpl.Documents = append(tpl.Documents, models.WorkflowDocument{Name: d.Name, Required: d.Required})
	}
	return tpl
}

// StepInstanceResponse is a step instance as returned by the API.
type StepInstanceResponse struct {
	ID             int64             `json:"id"`
	WorkflowStepID int64             `json:"workflow_step_id"`
	StepName       string            `json:"step_name"`
	StepOrder      int               `json:"step_order"`
	StepTiming     string            `json:"step_timing,omitempty"`
	CalculatedDate types.Date        `json:"calculated_date"`
	Status         models.StepStatus `json:"status"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	ActualTime     string            `json:"actual_time,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	TaskID         *int64            `json:"task_id,omitempty"`
}

// InstanceResponse is an instance with its steps and progress.
type InstanceResponse struct {
	ID           int64                  `json:"id"`
	WorkflowID   int64                  `json:"workflow_id"`
	Name         string                 `json:"name"`
	TriggerDate  types.Date             `json:"trigger_date"`
	Status       models.InstanceStatus  `json:"status"`
	Memo         string                 `json:"memo,omitempty"`
	InvestmentID *int64                 `json:"investment_id,omitempty"`
	CompanyID    *int64                 `json:"company_id,omitempty"`
	FundID       *int64                 `json:"fund_id,omitempty"`
	GPEntityID   *int64                 `json:"gp_entity_id,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	Progress     string                 `json:"progress"`
	Steps        []StepInstanceResponse `json:"step_instances"`
}

func newInstanceResponse(inst *models.WorkflowInstance) InstanceResponse {
	resp := InstanceResponse{
		ID:           inst.ID,
		WorkflowID:   inst.WorkflowID,
		Name:         inst.Name,
		TriggerDate:  types.Date{Time: inst.TriggerDate},
		Status:       inst.Status,
		Memo:         inst.Memo,
		InvestmentID: inst.InvestmentID,
		CompanyID:    inst.CompanyID,
		FundID:       inst.FundID,
		GPEntityID:   inst.GPEntityID,
		CreatedAt:    inst.CreatedAt,
		CompletedAt:  inst.CompletedAt,
		Progress:     inst.Progress(),
		Steps:        make([]StepInstanceResponse, 0, len(inst.StepInstances)),
	}
	for _, si := range inst.StepInstances {
		resp.Steps = append(resp.Steps, StepInstanceResponse{
			ID:             si.ID,
			WorkflowStepID: si.WorkflowStepID,
			StepName:       si.StepName,
			StepOrder:      si.StepOrder,
			StepTiming:     si.StepTiming,
			CalculatedDate: types.Date{Time: si.CalculatedDate},
			Status:         si.Status,
			CompletedAt:    si.CompletedAt,
			ActualTime:     si.ActualTime,
			Notes:          si.Notes,
			TaskID:         si.TaskID,
		})
	}
	return resp
}

func newInstanceList(list []*models.WorkflowInstance) []InstanceResponse {
	out := make([]InstanceResponse, 0, len(list))
	for _, inst := range list {
		out = append(out, newInstanceResponse(inst))
	}
	return out
}
