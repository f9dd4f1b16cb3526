package services

import (
	"context"
	"sort"
	"strings"

	"github.com/benbjohnson/clock"

	"fundops/backend/internal/logging"
	"fundops/backend/internal/repository"
	"fundops/backend/pkg/models"
)

// TemplateService manages workflow templates.
type TemplateService struct {
	store  repository.Repository
	clock  clock.Clock
	logger *logging.Logger
}

// NewTemplateService creates a new TemplateService.
func NewTemplateService(store repository.Repository, logger *logging.Logger, c clock.Clock) *TemplateService {
	if c == nil {
		c = clock.New()
	}
	return &TemplateService{store: store, clock: c, logger: logger}
}

var _ TemplateManager = (*TemplateService)(nil)

// CreateTemplate validates and stores a template.
func (s *TemplateService) CreateTemplate(ctx context.Context, tpl *models.WorkflowTemplate) (*models.WorkflowTemplate, error) {
	const op = "create workflow"
	tpl.Name = strings.TrimSpace(tpl.Name)
	tpl.Category = strings.TrimSpace(tpl.Category)
	if tpl.Name == "" {
		return nil, validationf(op, "name is required")
	}
	if len(tpl.Steps) == 0 {
		return nil, validationf(op, "at least one step is required")
	}
	orders := make(map[int]struct{}, len(tpl.Steps))
	for _, st := range tpl.Steps {
		if strings.TrimSpace(st.Name) == "" {
			return nil, validationf(op, "step %d has no name", st.Order)
		}
		if _, dup := orders[st.Order]; dup {
			return nil, validationf(op, "duplicate step order %d", st.Order)
		}
		orders[st.Order] = struct{}{}
	}
	sort.SliceStable(tpl.Steps, func(i, j int) bool { return tpl.Steps[i].Order < tpl.Steps[j].Order })
	tpl.CreatedAt = s.clock.Now()

	if err := s.store.CreateTemplate(ctx, tpl); err != nil {
		return nil, classify(op, err)
	}
	s.logger.Info("workflow created", "workflow_id", tpl.ID, "name", tpl.Name, "steps", len(tpl.Steps))
	return tpl, nil
}

// GetTemplate loads a template.
func (s *TemplateService) GetTemplate(ctx context.Context, id int64) (*models.WorkflowTemplate, error) {
	tpl, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, classify("get workflow", err)
	}
	return tpl, nil
}

// ListTemplates lists every template.
func (s *TemplateService) ListTemplates(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	tpls, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, classify("list workflows", err)
	}
	if tpls == nil {
		tpls = []*models.WorkflowTemplate{}
	}
	return tpls, nil
}

// DeleteTemplate deletes a template that no instance refers to.
func (s *TemplateService) DeleteTemplate(ctx context.Context, id int64) error {
	const op = "delete workflow"
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.GetTemplate(ctx, id); err != nil {
			return err
		}
		n, err := s.store.CountInstances(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return transitionf(op, "workflow %d still has %d instance(s)", id, n)
		}
		return s.store.DeleteTemplate(ctx, id)
	})
	if err != nil {
		return classify(op, err)
	}
	s.logger.Info("workflow deleted", "workflow_id", id)
	return nil
}
