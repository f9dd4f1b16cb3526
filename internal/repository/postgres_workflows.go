package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fundops/backend/pkg/models"
)

// CreateTemplate saves a template with its steps and documents.
func (s *PostgresStore) CreateTemplate(ctx context.Context, tpl *models.WorkflowTemplate) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		q := s.conn(ctx)
		err := q.QueryRow(ctx,
			`INSERT INTO workflows (name, category, trigger_description) VALUES ($1, $2, $3)
			 RETURNING id, created_at`,
			tpl.Name, tpl.Category, tpl.TriggerDescription,
		).Scan(&tpl.ID, &tpl.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert workflow: %w", err)
		}
		for i := range tpl.Steps {
			st := &tpl.Steps[i]
			st.WorkflowID = tpl.ID
			err := q.QueryRow(ctx,
				`INSERT INTO workflow_steps (workflow_id, step_order, name, timing, timing_offset_days, estimated_time, quadrant, memo)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
				st.WorkflowID, st.Order, st.Name, st.Timing, st.TimingOffsetDays, st.EstimatedTime, st.Quadrant, st.Memo,
			).Scan(&st.ID)
			if err != nil {
				return fmt.Errorf("insert workflow step: %w", err)
			}
		}
		for i := range tpl.Documents {
			d := &tpl.Documents[i]
			d.WorkflowID = tpl.ID
			err := q.QueryRow(ctx,
				`INSERT INTO workflow_documents (workflow_id, name, required) VALUES ($1, $2, $3) RETURNING id`,
				d.WorkflowID, d.Name, d.Required,
			).Scan(&d.ID)
			if err != nil {
				return fmt.Errorf("insert workflow document: %w", err)
			}
		}
		return nil
	})
}

const templateColumns = `id, name, category, trigger_description, created_at`

func scanTemplate(row pgx.Row) (*models.WorkflowTemplate, error) {
	var tpl models.WorkflowTemplate
	if err := row.Scan(&tpl.ID, &tpl.Name, &tpl.Category, &tpl.TriggerDescription, &tpl.CreatedAt); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (s *PostgresStore) loadTemplateChildren(ctx context.Context, tpl *models.WorkflowTemplate) error {
	q := s.conn(ctx)
	rows, err := q.Query(ctx,
		`SELECT id, workflow_id, step_order, name, timing, timing_offset_days, estimated_time, quadrant, memo
		 FROM workflow_steps WHERE workflow_id = $1 ORDER BY step_order, id`, tpl.ID)
	if err != nil {
		return err
	}
	tpl.Steps, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.WorkflowStep, error) {
		var st models.WorkflowStep
		err := row.Scan(&st.ID, &st.WorkflowID, &st.Order, &st.Name, &st.Timing, &st.TimingOffsetDays,
			&st.EstimatedTime, &st.Quadrant, &st.Memo)
		return st, err
	})
	if err != nil {
		return err
	}

	rows, err = q.Query(ctx,
		`SELECT id, workflow_id, name, required FROM workflow_documents WHERE workflow_id = $1 ORDER BY id`, tpl.ID)
	if err != nil {
		return err
	}
	tpl.Documents, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.WorkflowDocument, error) {
		var d models.WorkflowDocument
		err := row.Scan(&d.ID, &d.WorkflowID, &d.Name, &d.Required)
		return d, err
	})
	return err
}

// GetTemplate loads a template with its ordered steps and documents.
func (s *PostgresStore) GetTemplate(ctx context.Context, id int64) (*models.WorkflowTemplate, error) {
	tpl, err := scanTemplate(s.conn(ctx).QueryRow(ctx,
		`SELECT `+templateColumns+` FROM workflows WHERE id = $1`, id))
	if err != nil {
		return nil, noRows(err, "workflow", id)
	}
	if err := s.loadTemplateChildren(ctx, tpl); err != nil {
		return nil, fmt.Errorf("workflow %d children: %w", id, err)
	}
	return tpl, nil
}

// ListTemplates loads every template.
func (s *PostgresStore) ListTemplates(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	rows, err := s.conn(ctx).Query(ctx, `SELECT `+templateColumns+` FROM workflows ORDER BY id`)
	if err != nil {
		return nil, err
	}
	tpls, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.WorkflowTemplate, error) {
		return scanTemplate(row)
	})
	if err != nil {
		return nil, err
	}
	for _, tpl := range tpls {
		if err := s.loadTemplateChildren(ctx, tpl); err != nil {
			return nil, err
		}
	}
	return tpls, nil
}

// DeleteTemplate removes a template; steps and documents cascade.
func (s *PostgresStore) DeleteTemplate(ctx context.Context, id int64) error {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return mustAffect(tag.RowsAffected(), "workflow", id)
}

// CountInstances counts instances of a template.
func (s *PostgresStore) CountInstances(ctx context.Context, templateID int64) (int, error) {
	var n int
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT count(*) FROM workflow_instances WHERE workflow_id = $1`, templateID).Scan(&n)
	return n, err
}

const instanceColumns = `id, workflow_id, name, trigger_date, status, memo,
	investment_id, company_id, fund_id, gp_entity_id, created_at, completed_at, notice_overrides`

func scanInstance(row pgx.Row) (*models.WorkflowInstance, error) {
	var inst models.WorkflowInstance
	var overrides []byte
	err := row.Scan(&inst.ID, &inst.WorkflowID, &inst.Name, &inst.TriggerDate, &inst.Status, &inst.Memo,
		&inst.InvestmentID, &inst.CompanyID, &inst.FundID, &inst.GPEntityID, &inst.CreatedAt, &inst.CompletedAt,
		&overrides)
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &inst.NoticeOverrides); err != nil {
			return nil, fmt.Errorf("decode notice overrides of instance %d: %w", inst.ID, err)
		}
	}
	return &inst, nil
}

// encodeOverrides renders overrides as jsonb; none is stored as NULL.
func encodeOverrides(overrides []models.NoticeOverride) ([]byte, error) {
	if len(overrides) == 0 {
		return nil, nil
	}
	return json.Marshal(overrides)
}

// CreateInstance inserts the instance row. Notice overrides are written
// once here and never updated.
func (s *PostgresStore) CreateInstance(ctx context.Context, inst *models.WorkflowInstance) error {
	overrides, err := encodeOverrides(inst.NoticeOverrides)
	if err != nil {
		return fmt.Errorf("encode notice overrides: %w", err)
	}
	err = s.conn(ctx).QueryRow(ctx,
		`INSERT INTO workflow_instances (workflow_id, name, trigger_date, status, memo,
			investment_id, company_id, fund_id, gp_entity_id, created_at, completed_at, notice_overrides)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		inst.WorkflowID, inst.Name, inst.TriggerDate, inst.Status, inst.Memo,
		inst.InvestmentID, inst.CompanyID, inst.FundID, inst.GPEntityID, inst.CreatedAt, inst.CompletedAt,
		overrides,
	).Scan(&inst.ID)
	if err != nil {
		return fmt.Errorf("insert workflow instance: %w", err)
	}
	return nil
}

// GetInstance loads one instance row.
func (s *PostgresStore) GetInstance(ctx context.Context, id int64) (*models.WorkflowInstance, error) {
	inst, err := scanInstance(s.conn(ctx).QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM workflow_instances WHERE id = $1`, id))
	if err != nil {
		return nil, noRows(err, "workflow instance", id)
	}
	return inst, nil
}

// ListInstances lists instances newest first.
func (s *PostgresStore) ListInstances(ctx context.Context, f InstanceFilter) ([]*models.WorkflowInstance, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT `+instanceColumns+` FROM workflow_instances
		 WHERE ($1::bigint IS NULL OR workflow_id = $1)
		   AND ($2::bigint IS NULL OR investment_id = $2)
		   AND ($3::bigint IS NULL OR company_id = $3)
		   AND ($4::bigint IS NULL OR fund_id = $4)
		   AND ($5::bigint IS NULL OR gp_entity_id = $5)
		 ORDER BY id DESC`,
		f.WorkflowID, f.InvestmentID, f.CompanyID, f.FundID, f.GPEntityID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.WorkflowInstance, error) {
		return scanInstance(row)
	})
}

// UpdateInstance writes every mutable instance column.
func (s *PostgresStore) UpdateInstance(ctx context.Context, inst *models.WorkflowInstance) error {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE workflow_instances SET name = $1, trigger_date = $2, status = $3, memo = $4,
			investment_id = $5, company_id = $6, fund_id = $7, gp_entity_id = $8, completed_at = $9
		 WHERE id = $10`,
		inst.Name, inst.TriggerDate, inst.Status, inst.Memo,
		inst.InvestmentID, inst.CompanyID, inst.FundID, inst.GPEntityID, inst.CompletedAt, inst.ID)
	if err != nil {
		return err
	}
	return mustAffect(tag.RowsAffected(), "workflow instance", inst.ID)
}

// DeleteInstance removes the instance row. Step instances must be gone.
func (s *PostgresStore) DeleteInstance(ctx context.Context, id int64) error {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM workflow_instances WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return mustAffect(tag.RowsAffected(), "workflow instance", id)
}

const stepInstanceSelect = `SELECT si.id, si.instance_id, si.workflow_step_id, si.calculated_date, si.status,
	si.completed_at, si.actual_time, si.notes, si.task_id, ws.name, ws.step_order, ws.timing
	FROM workflow_step_instances si JOIN workflow_steps ws ON ws.id = si.workflow_step_id`

func scanStepInstance(row pgx.Row) (*models.WorkflowStepInstance, error) {
	var si models.WorkflowStepInstance
	err := row.Scan(&si.ID, &si.InstanceID, &si.WorkflowStepID, &si.CalculatedDate, &si.Status,
		&si.CompletedAt, &si.ActualTime, &si.Notes, &si.TaskID, &si.StepName, &si.StepOrder, &si.StepTiming)
	if err != nil {
		return nil, err
	}
	return &si, nil
}

// CreateStepInstance inserts a step instance.
func (s *PostgresStore) CreateStepInstance(ctx context.Context, si *models.WorkflowStepInstance) error {
	err := s.conn(ctx).QueryRow(ctx,
		`INSERT INTO workflow_step_instances (instance_id, workflow_step_id, calculated_date, status,
			completed_at, actual_time, notes, task_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		si.InstanceID, si.WorkflowStepID, si.CalculatedDate, si.Status,
		si.CompletedAt, si.ActualTime, si.Notes, si.TaskID,
	).Scan(&si.ID)
	if err != nil {
		return fmt.Errorf("insert step instance: %w", err)
	}
	return nil
}

// GetStepInstance loads a step instance with its source step fields.
func (s *PostgresStore) GetStepInstance(ctx context.Context, id int64) (*models.WorkflowStepInstance, error) {
	si, err := scanStepInstance(s.conn(ctx).QueryRow(ctx, stepInstanceSelect+` WHERE si.id = $1`, id))
	if err != nil {
		return nil, noRows(err, "step instance", id)
	}
	return si, nil
}

// ListStepInstances lists an instance's steps in source step order.
func (s *PostgresStore) ListStepInstances(ctx context.Context, instanceID int64) ([]*models.WorkflowStepInstance, error) {
	rows, err := s.conn(ctx).Query(ctx,
		stepInstanceSelect+` WHERE si.instance_id = $1 ORDER BY ws.step_order, si.id`, instanceID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.WorkflowStepInstance, error) {
		return scanStepInstance(row)
	})
}

// UpdateStepInstance writes the mutable step instance columns.
func (s *PostgresStore) UpdateStepInstance(ctx context.Context, si *models.WorkflowStepInstance) error {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE workflow_step_instances SET calculated_date = $1, status = $2, completed_at = $3,
			actual_time = $4, notes = $5, task_id = $6
		 WHERE id = $7`,
		si.CalculatedDate, si.Status, si.CompletedAt, si.ActualTime, si.Notes, si.TaskID, si.ID)
	if err != nil {
		return err
	}
	return mustAffect(tag.RowsAffected(), "step instance", si.ID)
}

// DeleteStepInstances removes every step instance of an instance.
func (s *PostgresStore) DeleteStepInstances(ctx context.Context, instanceID int64) error {
	_, err := s.conn(ctx).Exec(ctx, `DELETE FROM workflow_step_instances WHERE instance_id = $1`, instanceID)
	return err
}
