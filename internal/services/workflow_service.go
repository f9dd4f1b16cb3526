package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"fundops/backend/internal/calendar"
	"fundops/backend/internal/logging"
	"fundops/backend/internal/notice"
	"fundops/backend/internal/repository"
	"fundops/backend/internal/sideeffect"
	"fundops/backend/internal/telemetry"
	"fundops/backend/pkg/models"
)

// WorkflowService runs the instance lifecycle: instantiation, the step state
// machine, cancellation and deletion. Every operation is one unit of work.
type WorkflowService struct {
	store   repository.Repository
	inst    *Instantiator
	effects *sideeffect.Registry
	clock   clock.Clock
	logger  *logging.Logger
	metrics *telemetry.Metrics
}

// Option configures a WorkflowService.
type Option func(*WorkflowService)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(s *WorkflowService) {
		s.clock = c
		s.inst.clock = c
	}
}

// WithCalendar sets the business calendar.
func WithCalendar(cal *calendar.Calendar) Option {
	return func(s *WorkflowService) { s.inst.cal = cal }
}

// periodCache is a notice source that caches periods per fund.
type periodCache interface {
	Invalidate(fundID int64)
}

// WithNoticeSource sets where fund notice periods are read from.
func WithNoticeSource(src notice.PeriodLister) Option {
	return func(s *WorkflowService) { s.inst.notices = src }
}

// WithLooseMatch toggles the substring fallback of notice resolution.
func WithLooseMatch(enabled bool) Option {
	return func(s *WorkflowService) { s.inst.looseMatch = enabled }
}

// WithMetrics sets the lifecycle counters.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *WorkflowService) { s.metrics = m }
}

// WithSideEffects replaces the side effect registry.
func WithSideEffects(r *sideeffect.Registry) Option {
	return func(s *WorkflowService) { s.effects = r }
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(store repository.Repository, logger *logging.Logger, opts ...Option) *WorkflowService {
	s := &WorkflowService{
		store:  store,
		clock:  clock.New(),
		logger: logger,
		inst: &Instantiator{
			store:      store,
			notices:    store,
			cal:        calendar.New(),
			clock:      clock.New(),
			looseMatch: true,
			logger:     logger,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.effects == nil {
		s.effects = sideeffect.NewRegistry(store, logger)
	}
	return s
}

var _ WorkflowEngine = (*WorkflowService)(nil)

// Instantiate validates links and creates an instance from a template.
func (s *WorkflowService) Instantiate(ctx context.Context, req InstantiateRequest) (*models.WorkflowInstance, error) {
	const op = "instantiate"
	if strings.TrimSpace(req.Name) == "" {
		return nil, validationf(op, "name is required")
	}
	if req.TriggerDate.IsZero() {
		return nil, validationf(op, "trigger_date is required")
	}

	var out *models.WorkflowInstance
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		tpl, err := s.store.GetTemplate(ctx, req.WorkflowID)
		if err != nil {
			return err
		}
		if len(tpl.Steps) == 0 {
			return validationf(op, "workflow %d has no steps", tpl.ID)
		}
		links, err := s.resolveLinks(ctx, req.Links)
		if err != nil {
			return err
		}
		req.Links = links
		out, err = s.inst.Instantiate(ctx, tpl, req)
		if err != nil {
			return err
		}
		s.metrics.Instantiated(ctx, tpl.Category)
		return nil
	})
	if err != nil {
		return nil, classify(op, err)
	}
	s.logger.Info("workflow instantiated", "instance_id", out.ID, "workflow_id", req.WorkflowID, "steps", len(out.StepInstances))
	return out, nil
}

// resolveLinks checks the link combination and that every linked entity
// exists. An investment link fills in its company and fund.
func (s *WorkflowService) resolveLinks(ctx context.Context, l Links) (Links, error) {
	const op = "instantiate"
	if l.GPEntityID != nil {
		var conflicts []string
		if l.InvestmentID != nil {
			conflicts = append(conflicts, "investment_id")
		}
		if l.FundID != nil {
			conflicts = append(conflicts, "fund_id")
		}
		if l.CompanyID != nil {
			conflicts = append(conflicts, "company_id")
		}
		if len(conflicts) > 0 {
			return l, validationf(op, "gp_entity_id cannot be combined with %s", strings.Join(conflicts, ", "))
		}
		if _, err := s.store.GetGPEntity(ctx, *l.GPEntityID); err != nil {
			return l, err
		}
		return l, nil
	}

	if l.InvestmentID != nil {
		inv, err := s.store.GetInvestment(ctx, *l.InvestmentID)
		if err != nil {
			return l, err
		}
		if l.CompanyID != nil && *l.CompanyID != inv.CompanyID {
			return l, validationf(op, "company_id %d conflicts with investment_id %d (company %d)", *l.CompanyID, inv.ID, inv.CompanyID)
		}
		if l.FundID != nil && *l.FundID != inv.FundID {
			return l, validationf(op, "fund_id %d conflicts with investment_id %d (fund %d)", *l.FundID, inv.ID, inv.FundID)
		}
		companyID, fundID := inv.CompanyID, inv.FundID
		l.CompanyID, l.FundID = &companyID, &fundID
	}
	if l.CompanyID != nil {
		if _, err := s.store.GetCompany(ctx, *l.CompanyID); err != nil {
			return l, err
		}
	}
	if l.FundID != nil {
		if _, err := s.store.GetFund(ctx, *l.FundID); err != nil {
			return l, err
		}
	}
	return l, nil
}

// GetInstance loads a reconciled instance with its steps.
func (s *WorkflowService) GetInstance(ctx context.Context, id int64) (*models.WorkflowInstance, error) {
	var out *models.WorkflowInstance
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		inst, err := s.store.GetInstance(ctx, id)
		if err != nil {
			return err
		}
		out, err = s.loadReconciled(ctx, inst)
		return err
	})
	if err != nil {
		return nil, classify("get instance", err)
	}
	return out, nil
}

// ListInstances lists reconciled instances, filtered by status afterwards.
func (s *WorkflowService) ListInstances(ctx context.Context, req ListInstancesRequest) ([]*models.WorkflowInstance, error) {
	const op = "list instances"
	switch models.InstanceStatus(req.Status) {
	case "", models.InstanceStatusActive, models.InstanceStatusCompleted, models.InstanceStatusCancelled:
	default:
		return nil, validationf(op, "unknown status %q", req.Status)
	}

	out := []*models.WorkflowInstance{}
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		list, err := s.store.ListInstances(ctx, repository.InstanceFilter{
			WorkflowID:   req.WorkflowID,
			InvestmentID: req.InvestmentID,
			CompanyID:    req.CompanyID,
			FundID:       req.FundID,
			GPEntityID:   req.GPEntityID,
		})
		if err != nil {
			return err
		}
		for _, inst := range list {
			inst, err = s.loadReconciled(ctx, inst)
			if err != nil {
				return err
			}
			if req.Status != "" && string(inst.Status) != req.Status {
				continue
			}
			out = append(out, inst)
		}
		return nil
	})
	if err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// loadReconciled attaches steps and corrects a drifted status: an active
// instance whose steps are all terminal becomes completed, a completed one
// with open steps becomes active again. Cancelled instances are left alone.
func (s *WorkflowService) loadReconciled(ctx context.Context, inst *models.WorkflowInstance) (*models.WorkflowInstance, error) {
	steps, err := s.store.ListStepInstances(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	inst.StepInstances = steps
	if len(steps) == 0 || inst.Status == models.InstanceStatusCancelled {
		return inst, nil
	}

	done := allTerminal(steps)
	switch {
	case inst.Status == models.InstanceStatusActive && done:
		completedAt := latestCompletion(steps)
		if completedAt == nil {
			now := s.clock.Now()
			completedAt = &now
		}
		inst.Status = models.InstanceStatusCompleted
		inst.CompletedAt = completedAt
	case inst.Status == models.InstanceStatusCompleted && !done:
		inst.Status = models.InstanceStatusActive
		inst.CompletedAt = nil
	default:
		return inst, nil
	}
	s.logger.Warn("reconciled instance status", "instance_id", inst.ID, "status", inst.Status)
	if err := s.store.UpdateInstance(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// UpdateInstance renames or retargets an active instance. Only a new trigger
// date recomputes step dates, with the instance's notice overrides applied;
// tasks not yet completed get the new title prefix and deadline.
func (s *WorkflowService) UpdateInstance(ctx context.Context, id int64, req UpdateInstanceRequest) (*models.WorkflowInstance, error) {
	const op = "update instance"
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, validationf(op, "name cannot be empty")
	}

	var out *models.WorkflowInstance
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		inst, err := s.store.GetInstance(ctx, id)
		if err != nil {
			return err
		}
		if inst.Status != models.InstanceStatusActive {
			return transitionf(op, "instance %d is %s; only active instances can be updated", id, inst.Status)
		}

		oldName := inst.Name
		if req.Name != nil {
			inst.Name = strings.TrimSpace(*req.Name)
		}
		if req.Memo != nil {
			inst.Memo = *req.Memo
		}
		if req.TriggerDate != nil {
			inst.TriggerDate = calendar.Date(*req.TriggerDate)
		}
		if err := s.store.UpdateInstance(ctx, inst); err != nil {
			return err
		}

		var dates map[int64]time.Time
		if req.TriggerDate != nil {
			tpl, err := s.store.GetTemplate(ctx, inst.WorkflowID)
			if err != nil {
				return err
			}
			if dates, err = s.inst.stepDates(ctx, tpl, inst); err != nil {
				return err
			}
		}

		steps, err := s.store.ListStepInstances(ctx, inst.ID)
		if err != nil {
			return err
		}
		for _, si := range steps {
			if d, ok := dates[si.WorkflowStepID]; ok {
				si.CalculatedDate = d
				if err := s.store.UpdateStepInstance(ctx, si); err != nil {
					return err
				}
			}
			task, err := linkedTask(ctx, s.store, si)
			if err != nil {
				return err
			}
			if task == nil || task.Status == models.TaskStatusCompleted {
				continue
			}
			task.Title = retitle(task.Title, oldName, inst.Name, si.StepName)
			if dates != nil {
				deadline := si.CalculatedDate
				task.Deadline = &deadline
			}
			if err := s.store.UpdateTask(ctx, task); err != nil {
				return err
			}
		}
		out, err = s.loadReconciled(ctx, inst)
		return err
	})
	if err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// CompleteStep completes a step in order, mirrors its task, runs side
// effects, activates the next pending step and completes the instance when
// every step is terminal.
func (s *WorkflowService) CompleteStep(ctx context.Context, instanceID, stepInstanceID int64, req CompleteStepRequest) (*models.WorkflowInstance, error) {
	const op = "complete step"
	var out *models.WorkflowInstance
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		inst, si, err := s.loadStep(ctx, op, instanceID, stepInstanceID)
		if err != nil {
			return err
		}
		if inst.Status != models.InstanceStatusActive {
			return transitionf(op, "instance %d is %s", inst.ID, inst.Status)
		}
		if si.Status.Terminal() {
			return transitionf(op, "step %q is already %s", si.StepName, si.Status)
		}

		steps, err := s.store.ListStepInstances(ctx, inst.ID)
		if err != nil {
			return err
		}
		for _, other := range steps {
			if other.StepOrder < si.StepOrder && !other.Status.Terminal() {
				return transitionf(op, "step %q (order %d) must be completed before %q", other.StepName, other.StepOrder, si.StepName)
			}
		}

		now := s.clock.Now()
		si.Status = models.StepStatusCompleted
		si.CompletedAt = &now
		si.ActualTime = req.ActualTime
		si.Notes = req.Notes
		if err := s.store.UpdateStepInstance(ctx, si); err != nil {
			return err
		}
		if err := s.mirrorCompleted(ctx, si, now); err != nil {
			return err
		}

		tpl, err := s.store.GetTemplate(ctx, inst.WorkflowID)
		if err != nil {
			return err
		}
		if err := s.dispatch(ctx, sideeffect.Event{
			Trigger: sideeffect.StepCompleted, Category: tpl.Category, Instance: inst, Step: si, Now: now,
		}); err != nil {
			return err
		}

		// The completed row was written above, so this read observes it.
		steps, err = s.store.ListStepInstances(ctx, inst.ID)
		if err != nil {
			return err
		}
		if next := nextToActivate(steps); next != nil {
			if err := s.inst.activate(ctx, next); err != nil {
				return err
			}
		}

		if allTerminal(steps) {
			inst.Status = models.InstanceStatusCompleted
			inst.CompletedAt = &now
			if err := s.store.UpdateInstance(ctx, inst); err != nil {
				return err
			}
			if err := s.dispatch(ctx, sideeffect.Event{
				Trigger: sideeffect.InstanceCompleted, Category: tpl.Category, Instance: inst, Now: now,
			}); err != nil {
				return err
			}
		}
		s.metrics.StepCompleted(ctx)

		out, err = s.loadReconciled(ctx, inst)
		return err
	})
	if err != nil {
		return nil, classify(op, err)
	}
	s.logger.Info("workflow step completed", "instance_id", instanceID, "step_instance_id", stepInstanceID, "instance_status", out.Status)
	return out, nil
}

// UndoStep reverts a completed step to pending, mirrors its task, reverses
// the step's side effects and reopens a completed instance.
func (s *WorkflowService) UndoStep(ctx context.Context, instanceID, stepInstanceID int64) (*models.WorkflowInstance, error) {
	const op = "undo step"
	var out *models.WorkflowInstance
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		inst, si, err := s.loadStep(ctx, op, instanceID, stepInstanceID)
		if err != nil {
			return err
		}
		if inst.Status == models.InstanceStatusCancelled {
			return transitionf(op, "instance %d is cancelled", inst.ID)
		}
		if si.Status != models.StepStatusCompleted {
			return transitionf(op, "step %q is %s, not completed", si.StepName, si.Status)
		}

		notes := si.Notes
		si.Status = models.StepStatusPending
		si.CompletedAt = nil
		si.ActualTime = ""
		si.Notes = ""
		if err := s.store.UpdateStepInstance(ctx, si); err != nil {
			return err
		}
		if err := s.mirrorUndone(ctx, si, notes); err != nil {
			return err
		}

		tpl, err := s.store.GetTemplate(ctx, inst.WorkflowID)
		if err != nil {
			return err
		}
		if err := s.dispatch(ctx, sideeffect.Event{
			Trigger: sideeffect.StepUndone, Category: tpl.Category, Instance: inst, Step: si, Now: s.clock.Now(),
		}); err != nil {
			return err
		}

		if inst.Status == models.InstanceStatusCompleted {
			inst.Status = models.InstanceStatusActive
			inst.CompletedAt = nil
			if err := s.store.UpdateInstance(ctx, inst); err != nil {
				return err
			}
		}
		s.metrics.StepUndone(ctx)

		out, err = s.loadReconciled(ctx, inst)
		return err
	})
	if err != nil {
		return nil, classify(op, err)
	}
	s.logger.Info("workflow step undone", "instance_id", instanceID, "step_instance_id", stepInstanceID)
	return out, nil
}

// CancelInstance marks the instance cancelled and deletes the tasks of steps
// that never started.
func (s *WorkflowService) CancelInstance(ctx context.Context, id int64) (*models.WorkflowInstance, error) {
	const op = "cancel instance"
	var out *models.WorkflowInstance
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		inst, err := s.store.GetInstance(ctx, id)
		if err != nil {
			return err
		}
		inst.Status = models.InstanceStatusCancelled
		if err := s.store.UpdateInstance(ctx, inst); err != nil {
			return err
		}

		steps, err := s.store.ListStepInstances(ctx, inst.ID)
		if err != nil {
			return err
		}
		for _, si := range steps {
			if si.Status != models.StepStatusPending {
				continue
			}
			task, err := linkedTask(ctx, s.store, si)
			if err != nil {
				return err
			}
			if task == nil || task.Status != models.TaskStatusPending {
				continue
			}
			si.TaskID = nil
			if err := s.store.UpdateStepInstance(ctx, si); err != nil {
				return err
			}
			if err := s.store.DeleteTask(ctx, task.ID); err != nil {
				return err
			}
		}
		s.metrics.Cancelled(ctx)

		out, err = s.loadReconciled(ctx, inst)
		return err
	})
	if err != nil {
		return nil, classify(op, err)
	}
	s.logger.Info("workflow instance cancelled", "instance_id", id)
	return out, nil
}

// DeleteInstance deletes an active instance with its step instances.
// Completed and cancelled instances are kept as history. Pending tasks are
// deleted; started or finished tasks are detached and kept.
func (s *WorkflowService) DeleteInstance(ctx context.Context, id int64) error {
	const op = "delete instance"
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		inst, err := s.store.GetInstance(ctx, id)
		if err != nil {
			return err
		}
		if inst.Status != models.InstanceStatusActive {
			return transitionf(op, "instance %d is %s and kept as history", id, inst.Status)
		}
		return s.deleteInstance(ctx, inst)
	})
	if err != nil {
		return classify(op, err)
	}
	s.logger.Info("workflow instance deleted", "instance_id", id)
	return nil
}

func (s *WorkflowService) deleteInstance(ctx context.Context, inst *models.WorkflowInstance) error {
	steps, err := s.store.ListStepInstances(ctx, inst.ID)
	if err != nil {
		return err
	}
	var tasks []*models.Task
	for _, si := range steps {
		task, err := linkedTask(ctx, s.store, si)
		if err != nil {
			return err
		}
		if task != nil {
			tasks = append(tasks, task)
		}
	}

	if err := s.store.DeleteStepInstances(ctx, inst.ID); err != nil {
		return err
	}
	for _, task := range tasks {
		if task.Status == models.TaskStatusPending {
			if err := s.store.DeleteTask(ctx, task.ID); err != nil {
				return err
			}
			continue
		}
		task.WorkflowInstanceID = nil
		task.WorkflowStepOrder = nil
		if err := s.store.UpdateTask(ctx, task); err != nil {
			return err
		}
	}
	if err := s.store.ClearCapitalCallWorkflowLinks(ctx, inst.ID); err != nil {
		return err
	}
	if err := s.store.ClearLPTransferWorkflowLinks(ctx, inst.ID); err != nil {
		return err
	}
	if err := s.store.DeleteInstance(ctx, inst.ID); err != nil {
		return err
	}
	s.metrics.Deleted(ctx)
	return nil
}

// ReleaseEntity prepares the deletion of a linked entity: instances that are
// not completed are deleted, completed ones are detached from the entity.
func (s *WorkflowService) ReleaseEntity(ctx context.Context, kind EntityKind, id int64) (*ReleaseResult, error) {
	const op = "release entity"
	var filter repository.InstanceFilter
	switch kind {
	case EntityFund:
		filter.FundID = &id
	case EntityInvestment:
		filter.InvestmentID = &id
	case EntityCompany:
		filter.CompanyID = &id
	case EntityGPEntity:
		filter.GPEntityID = &id
	default:
		return nil, validationf(op, "unknown entity kind %q", kind)
	}

	res := &ReleaseResult{Deleted: []int64{}, Detached: []int64{}}
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		list, err := s.store.ListInstances(ctx, filter)
		if err != nil {
			return err
		}
		for _, inst := range list {
			if inst.Status != models.InstanceStatusCompleted {
				if err := s.deleteInstance(ctx, inst); err != nil {
					return err
				}
				res.Deleted = append(res.Deleted, inst.ID)
				continue
			}
			switch kind {
			case EntityFund:
				inst.FundID = nil
			case EntityInvestment:
				inst.InvestmentID = nil
			case EntityCompany:
				inst.CompanyID = nil
			case EntityGPEntity:
				inst.GPEntityID = nil
			}
			if err := s.store.UpdateInstance(ctx, inst); err != nil {
				return err
			}
			res.Detached = append(res.Detached, inst.ID)
		}
		return nil
	})
	if err != nil {
		return nil, classify(op, err)
	}
	if c, ok := s.inst.notices.(periodCache); ok && kind == EntityFund {
		c.Invalidate(id)
	}
	s.logger.Info("entity released", "kind", kind, "id", id, "deleted", len(res.Deleted), "detached", len(res.Detached))
	return res, nil
}

func (s *WorkflowService) loadStep(ctx context.Context, op string, instanceID, stepInstanceID int64) (*models.WorkflowInstance, *models.WorkflowStepInstance, error) {
	inst, err := s.store.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}
	si, err := s.store.GetStepInstance(ctx, stepInstanceID)
	if err != nil {
		return nil, nil, err
	}
	if si.InstanceID != inst.ID {
		return nil, nil, notFoundf(op, "step instance %d not found in instance %d", stepInstanceID, instanceID)
	}
	return inst, si, nil
}

func (s *WorkflowService) dispatch(ctx context.Context, ev sideeffect.Event) error {
	applied, err := s.effects.Dispatch(ctx, ev)
	for _, name := range applied {
		s.metrics.SideEffect(ctx, name)
	}
	return err
}

func (s *WorkflowService) mirrorCompleted(ctx context.Context, si *models.WorkflowStepInstance, now time.Time) error {
	task, err := linkedTask(ctx, s.store, si)
	if err != nil || task == nil {
		return err
	}
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &now
	task.ActualTime = si.ActualTime
	if si.Notes != "" {
		if task.Memo == "" {
			task.Memo = si.Notes
		} else {
			task.Memo = task.Memo + "\n" + si.Notes
		}
	}
	return s.store.UpdateTask(ctx, task)
}

func (s *WorkflowService) mirrorUndone(ctx context.Context, si *models.WorkflowStepInstance, notes string) error {
	task, err := linkedTask(ctx, s.store, si)
	if err != nil || task == nil {
		return err
	}
	task.Status = models.TaskStatusPending
	task.CompletedAt = nil
	task.ActualTime = ""
	if notes != "" {
		switch {
		case task.Memo == notes:
			task.Memo = ""
		case strings.HasSuffix(task.Memo, "\n"+notes):
			task.Memo = strings.TrimSuffix(task.Memo, "\n"+notes)
		}
	}
	return s.store.UpdateTask(ctx, task)
}

// linkedTask returns the step's task, or nil when it has none or the task
// was deleted independently.
func linkedTask(ctx context.Context, store repository.TaskStore, si *models.WorkflowStepInstance) (*models.Task, error) {
	if si.TaskID == nil {
		return nil, nil
	}
	task, err := store.GetTask(ctx, *si.TaskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading task %d: %w", *si.TaskID, err)
	}
	return task, nil
}

// nextToActivate returns the lowest-order pending step, unless a step is
// already in progress.
func nextToActivate(steps []*models.WorkflowStepInstance) *models.WorkflowStepInstance {
	var next *models.WorkflowStepInstance
	for _, si := range steps {
		switch si.Status {
		case models.StepStatusInProgress:
			return nil
		case models.StepStatusPending:
			if next == nil {
				next = si
			}
		}
	}
	return next
}

func allTerminal(steps []*models.WorkflowStepInstance) bool {
	for _, si := range steps {
		if !si.Status.Terminal() {
			return false
		}
	}
	return true
}

func latestCompletion(steps []*models.WorkflowStepInstance) *time.Time {
	var latest *time.Time
	for _, si := range steps {
		if si.CompletedAt != nil && (latest == nil || si.CompletedAt.After(*latest)) {
			latest = si.CompletedAt
		}
	}
	return latest
}

// retitle swaps the instance-name prefix of a task title.
func retitle(title, oldName, newName, stepName string) string {
	prefix := "[" + oldName + "]"
	if strings.HasPrefix(title, prefix) {
		return "[" + newName + "]" + strings.TrimPrefix(title, prefix)
	}
	return taskTitle(newName, stepName)
}
