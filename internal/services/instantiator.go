package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/benbjohnson/clock"

	"fundops/backend/internal/calendar"
	"fundops/backend/internal/logging"
	"fundops/backend/internal/notice"
	"fundops/backend/internal/repository"
	"fundops/backend/pkg/models"
)

// Instantiator turns a template into a live instance. It runs inside the
// caller's unit of work and expects links to be validated already.
type Instantiator struct {
	store      repository.Repository
	notices    notice.PeriodLister
	cal        *calendar.Calendar
	clock      clock.Clock
	looseMatch bool
	logger     *logging.Logger
}

// noticeTable loads the fund's rule table with overrides layered on top.
func (in *Instantiator) noticeTable(ctx context.Context, fundID *int64, overrides []notice.Override) (*notice.Table, error) {
	return notice.Load(ctx, in.notices, fundID, overrides, notice.WithLooseMatch(in.looseMatch))
}

// Instantiate creates the instance, its tasks and step instances, seeds
// investment documents and activates the first step.
func (in *Instantiator) Instantiate(ctx context.Context, tpl *models.WorkflowTemplate, req InstantiateRequest) (*models.WorkflowInstance, error) {
	table, err := in.noticeTable(ctx, req.Links.FundID, req.NoticeOverrides)
	if err != nil {
		return nil, err
	}

	now := in.clock.Now()
	trigger := calendar.Date(req.TriggerDate)
	inst := &models.WorkflowInstance{
		WorkflowID:   tpl.ID,
		Name:         req.Name,
		TriggerDate:  trigger,
		Status:       models.InstanceStatusActive,
		Memo:         req.Memo,
		InvestmentID: req.Links.InvestmentID,
		CompanyID:    req.Links.CompanyID,
		FundID:       req.Links.FundID,
		GPEntityID:   req.Links.GPEntityID,
		CreatedAt:    now,

		NoticeOverrides: slices.Clone(req.NoticeOverrides),
	}
	if err := in.store.CreateInstance(ctx, inst); err != nil {
		return nil, fmt.Errorf("creating instance: %w", err)
	}

	for _, st := range tpl.Steps {
		date, match := table.StepDate(in.cal, trigger, st)
		if match != nil {
			in.logger.Debug("notice period applied", "instance_id", inst.ID, "step", st.Name,
				"notice_type", match.NoticeType, "mode", match.Mode, "field", match.Field)
		}

		order := st.Order
		deadline := date
		task := &models.Task{
			Title:              taskTitle(inst.Name, st.Name),
			Deadline:           &deadline,
			EstimatedTime:      st.EstimatedTime,
			Quadrant:           st.Quadrant,
			Memo:               st.Memo,
			Status:             models.TaskStatusPending,
			WorkflowInstanceID: &inst.ID,
			WorkflowStepOrder:  &order,
			FundID:             inst.FundID,
			InvestmentID:       inst.InvestmentID,
			GPEntityID:         inst.GPEntityID,
			CreatedAt:          now,
		}
		if err := in.store.CreateTask(ctx, task); err != nil {
			return nil, fmt.Errorf("creating task for step %q: %w", st.Name, err)
		}

		si := &models.WorkflowStepInstance{
			InstanceID:     inst.ID,
			WorkflowStepID: st.ID,
			CalculatedDate: date,
			Status:         models.StepStatusPending,
			TaskID:         &task.ID,
		}
		if err := in.store.CreateStepInstance(ctx, si); err != nil {
			return nil, fmt.Errorf("creating step instance for step %q: %w", st.Name, err)
		}
	}

	if inst.InvestmentID != nil {
		if err := in.seedDocuments(ctx, *inst.InvestmentID, tpl.Documents); err != nil {
			return nil, err
		}
	}

	steps, err := in.store.ListStepInstances(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	if len(steps) > 0 {
		if err := in.activate(ctx, steps[0]); err != nil {
			return nil, err
		}
	}
	inst.StepInstances = steps
	return inst, nil
}

// seedDocuments creates the template's documents for an investment unless a
// document with the same name already exists.
func (in *Instantiator) seedDocuments(ctx context.Context, investmentID int64, docs []models.WorkflowDocument) error {
	if len(docs) == 0 {
		return nil
	}
	existing, err := in.store.ListInvestmentDocuments(ctx, investmentID)
	if err != nil {
		return fmt.Errorf("listing investment documents: %w", err)
	}
	seen := make(map[string]struct{}, len(existing))
	for _, d := range existing {
		seen[d.Name] = struct{}{}
	}
	for _, d := range docs {
		if _, ok := seen[d.Name]; ok {
			continue
		}
		doc := &models.InvestmentDocument{
			InvestmentID: investmentID,
			Name:         d.Name,
			DocType:      "workflow",
			Status:       models.DocumentStatusPending,
		}
		if err := in.store.CreateInvestmentDocument(ctx, doc); err != nil {
			return fmt.Errorf("seeding document %q: %w", d.Name, err)
		}
		seen[d.Name] = struct{}{}
	}
	return nil
}

// activate moves a step to in_progress and its task along with it while the
// task is still pending.
func (in *Instantiator) activate(ctx context.Context, si *models.WorkflowStepInstance) error {
	si.Status = models.StepStatusInProgress
	if err := in.store.UpdateStepInstance(ctx, si); err != nil {
		return fmt.Errorf("activating step %d: %w", si.ID, err)
	}
	task, err := linkedTask(ctx, in.store, si)
	if err != nil || task == nil {
		return err
	}
	if task.Status != models.TaskStatusPending {
		return nil
	}
	task.Status = models.TaskStatusInProgress
	return in.store.UpdateTask(ctx, task)
}

// stepDates resolves the calculated date of every template step against the
// instance's trigger date, with the instance's notice overrides applied.
func (in *Instantiator) stepDates(ctx context.Context, tpl *models.WorkflowTemplate, inst *models.WorkflowInstance) (map[int64]time.Time, error) {
	table, err := in.noticeTable(ctx, inst.FundID, inst.NoticeOverrides)
	if err != nil {
		return nil, err
	}
	dates := make(map[int64]time.Time, len(tpl.Steps))
	for _, st := range tpl.Steps {
		dates[st.ID], _ = table.StepDate(in.cal, inst.TriggerDate, st)
	}
	return dates, nil
}

func taskTitle(instanceName, stepName string) string {
	return fmt.Sprintf("[%s] %s", instanceName, stepName)
}
