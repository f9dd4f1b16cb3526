package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fundops/backend/pkg/models"
)

const taskColumns = `id, title, deadline, estimated_time, quadrant, memo, status, completed_at, actual_time,
	workflow_instance_id, workflow_step_order, fund_id, investment_id, gp_entity_id, created_at`

// CreateTask inserts a task.
func (s *PostgresStore) CreateTask(ctx context.Context, t *models.Task) error {
	err := s.conn(ctx).QueryRow(ctx,
		`INSERT INTO tasks (title, deadline, estimated_time, quadrant, memo, status, completed_at, actual_time,
			workflow_instance_id, workflow_step_order, fund_id, investment_id, gp_entity_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`,
		t.Title, t.Deadline, t.EstimatedTime, t.Quadrant, t.Memo, t.Status, t.CompletedAt, t.ActualTime,
		t.WorkflowInstanceID, t.WorkflowStepOrder, t.FundID, t.InvestmentID, t.GPEntityID, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask loads a task.
func (s *PostgresStore) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	var t models.Task
	err := s.conn(ctx).QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id).Scan(
		&t.ID, &t.Title, &t.Deadline, &t.EstimatedTime, &t.Quadrant, &t.Memo, &t.Status, &t.CompletedAt,
		&t.ActualTime, &t.WorkflowInstanceID, &t.WorkflowStepOrder, &t.FundID, &t.InvestmentID, &t.GPEntityID,
		&t.CreatedAt)
	if err != nil {
		return nil, noRows(err, "task", id)
	}
	return &t, nil
}

// UpdateTask writes every mutable task column.
func (s *PostgresStore) UpdateTask(ctx context.Context, t *models.Task) error {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE tasks SET title = $1, deadline = $2, estimated_time = $3, quadrant = $4, memo = $5, status = $6,
			completed_at = $7, actual_time = $8, workflow_instance_id = $9, workflow_step_order = $10,
			fund_id = $11, investment_id = $12, gp_entity_id = $13
		 WHERE id = $14`,
		t.Title, t.Deadline, t.EstimatedTime, t.Quadrant, t.Memo, t.Status, t.CompletedAt, t.ActualTime,
		t.WorkflowInstanceID, t.WorkflowStepOrder, t.FundID, t.InvestmentID, t.GPEntityID, t.ID)
	if err != nil {
		return err
	}
	return mustAffect(tag.RowsAffected(), "task", t.ID)
}

// DeleteTask removes a task.
func (s *PostgresStore) DeleteTask(ctx context.Context, id int64) error {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return mustAffect(tag.RowsAffected(), "task", id)
}

func (s *PostgresStore) getFund(ctx context.Context, id int64, lock bool) (*models.Fund, error) {
	query := `SELECT id, name, status, formation_date, commitment FROM funds WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var f models.Fund
	err := s.conn(ctx).QueryRow(ctx, query, id).Scan(&f.ID, &f.Name, &f.Status, &f.FormationDate, &f.Commitment)
	if err != nil {
		return nil, noRows(err, "fund", id)
	}
	return &f, nil
}

// GetFund loads a fund.
func (s *PostgresStore) GetFund(ctx context.Context, id int64) (*models.Fund, error) {
	return s.getFund(ctx, id, false)
}

// LockFund loads a fund with a row lock held until the transaction ends.
func (s *PostgresStore) LockFund(ctx context.Context, id int64) (*models.Fund, error) {
	return s.getFund(ctx, id, true)
}

// UpdateFund writes a fund's status, formation date and commitment.
func (s *PostgresStore) UpdateFund(ctx context.Context, f *models.Fund) error {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE funds SET name = $1, status = $2, formation_date = $3, commitment = $4 WHERE id = $5`,
		f.Name, f.Status, f.FormationDate, f.Commitment, f.ID)
	if err != nil {
		return err
	}
	return mustAffect(tag.RowsAffected(), "fund", f.ID)
}

// ListNoticePeriods lists a fund's notice periods.
func (s *PostgresStore) ListNoticePeriods(ctx context.Context, fundID int64) ([]models.FundNoticePeriod, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT id, fund_id, notice_type, label, business_days, day_basis, memo
		 FROM fund_notice_periods WHERE fund_id = $1 ORDER BY id`, fundID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.FundNoticePeriod, error) {
		var p models.FundNoticePeriod
		err := row.Scan(&p.ID, &p.FundID, &p.NoticeType, &p.Label, &p.BusinessDays, &p.DayBasis, &p.Memo)
		return p, err
	})
}

func (s *PostgresStore) getLP(ctx context.Context, id int64, lock bool) (*models.LP, error) {
	query := `SELECT id, fund_id, name, type, business_number, commitment, paid_in FROM lps WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var lp models.LP
	err := s.conn(ctx).QueryRow(ctx, query, id).Scan(
		&lp.ID, &lp.FundID, &lp.Name, &lp.Type, &lp.BusinessNumber, &lp.Commitment, &lp.PaidIn)
	if err != nil {
		return nil, noRows(err, "lp", id)
	}
	return &lp, nil
}

// GetLP loads an LP.
func (s *PostgresStore) GetLP(ctx context.Context, id int64) (*models.LP, error) {
	return s.getLP(ctx, id, false)
}

// LockLP loads an LP with a row lock held until the transaction ends.
func (s *PostgresStore) LockLP(ctx context.Context, id int64) (*models.LP, error) {
	return s.getLP(ctx, id, true)
}

// CreateLP inserts an LP.
func (s *PostgresStore) CreateLP(ctx context.Context, lp *models.LP) error {
	err := s.conn(ctx).QueryRow(ctx,
		`INSERT INTO lps (fund_id, name, type, business_number, commitment, paid_in)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		lp.FundID, lp.Name, lp.Type, lp.BusinessNumber, lp.Commitment, lp.PaidIn,
	).Scan(&lp.ID)
	if err != nil {
		return fmt.Errorf("insert lp: %w", err)
	}
	return nil
}

// UpdateLP writes an LP's balances and identity fields.
func (s *PostgresStore) UpdateLP(ctx context.Context, lp *models.LP) error {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE lps SET name = $1, type = $2, business_number = $3, commitment = $4, paid_in = $5 WHERE id = $6`,
		lp.Name, lp.Type, lp.BusinessNumber, lp.Commitment, lp.PaidIn, lp.ID)
	if err != nil {
		return err
	}
	return mustAffect(tag.RowsAffected(), "lp", lp.ID)
}

// GetCapitalCall loads a capital call.
func (s *PostgresStore) GetCapitalCall(ctx context.Context, id int64) (*models.CapitalCall, error) {
	var c models.CapitalCall
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT id, fund_id, call_date, call_type, total_amount, linked_workflow_instance_id
		 FROM capital_calls WHERE id = $1`, id,
	).Scan(&c.ID, &c.FundID, &c.CallDate, &c.CallType, &c.TotalAmount, &c.LinkedWorkflowInstanceID)
	if err != nil {
		return nil, noRows(err, "capital call", id)
	}
	return &c, nil
}

// ListCapitalCallItems lists a capital call's items.
func (s *PostgresStore) ListCapitalCallItems(ctx context.Context, capitalCallID int64) ([]*models.CapitalCallItem, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT id, capital_call_id, lp_id, amount, paid, paid_date
		 FROM capital_call_items WHERE capital_call_id = $1 ORDER BY id`, capitalCallID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.CapitalCallItem, error) {
		var it models.CapitalCallItem
		err := row.Scan(&it.ID, &it.CapitalCallID, &it.LPID, &it.Amount, &it.Paid, &it.PaidDate)
		return &it, err
	})
}

// UpdateCapitalCallItem writes an item's payment state.
func (s *PostgresStore) UpdateCapitalCallItem(ctx context.Context, it *models.CapitalCallItem) error {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE capital_call_items SET paid = $1, paid_date = $2, amount = $3 WHERE id = $4`,
		it.Paid, it.PaidDate, it.Amount, it.ID)
	if err != nil {
		return err
	}
	return mustAffect(tag.RowsAffected(), "capital call item", it.ID)
}

// ClearCapitalCallWorkflowLinks nulls capital call references to an instance.
func (s *PostgresStore) ClearCapitalCallWorkflowLinks(ctx context.Context, instanceID int64) error {
	_, err := s.conn(ctx).Exec(ctx,
		`UPDATE capital_calls SET linked_workflow_instance_id = NULL WHERE linked_workflow_instance_id = $1`,
		instanceID)
	return err
}

const transferColumns = `id, fund_id, from_lp_id, to_lp_id, to_lp_name, to_lp_type, to_lp_business_number,
	transfer_amount, status, workflow_instance_id, completed_at`

// GetLPTransferByWorkflowInstance loads the transfer driven by an instance.
func (s *PostgresStore) GetLPTransferByWorkflowInstance(ctx context.Context, instanceID int64) (*models.LPTransfer, error) {
	var t models.LPTransfer
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT `+transferColumns+` FROM lp_transfers WHERE workflow_instance_id = $1 ORDER BY id LIMIT 1`,
		instanceID,
	).Scan(&t.ID, &t.FundID, &t.FromLPID, &t.ToLPID, &t.ToLPName, &t.ToLPType, &t.ToLPBusinessNumber,
		&t.TransferAmount, &t.Status, &t.WorkflowInstanceID, &t.CompletedAt)
	if err != nil {
		return nil, noRows(err, "lp transfer for workflow instance", instanceID)
	}
	return &t, nil
}

// UpdateLPTransfer writes a transfer's outcome.
func (s *PostgresStore) UpdateLPTransfer(ctx context.Context, t *models.LPTransfer) error {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE lp_transfers SET to_lp_id = $1, status = $2, workflow_instance_id = $3, completed_at = $4
		 WHERE id = $5`,
		t.ToLPID, t.Status, t.WorkflowInstanceID, t.CompletedAt, t.ID)
	if err != nil {
		return err
	}
	return mustAffect(tag.RowsAffected(), "lp transfer", t.ID)
}

// ClearLPTransferWorkflowLinks nulls transfer references to an instance.
func (s *PostgresStore) ClearLPTransferWorkflowLinks(ctx context.Context, instanceID int64) error {
	_, err := s.conn(ctx).Exec(ctx,
		`UPDATE lp_transfers SET workflow_instance_id = NULL WHERE workflow_instance_id = $1`, instanceID)
	return err
}

// GetInvestment loads an investment.
func (s *PostgresStore) GetInvestment(ctx context.Context, id int64) (*models.Investment, error) {
	var inv models.Investment
	err := s.conn(ctx).QueryRow(ctx, `SELECT id, fund_id, company_id FROM investments WHERE id = $1`, id).
		Scan(&inv.ID, &inv.FundID, &inv.CompanyID)
	if err != nil {
		return nil, noRows(err, "investment", id)
	}
	return &inv, nil
}

// GetCompany loads a company.
func (s *PostgresStore) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	var c models.Company
	err := s.conn(ctx).QueryRow(ctx, `SELECT id, name FROM companies WHERE id = $1`, id).Scan(&c.ID, &c.Name)
	if err != nil {
		return nil, noRows(err, "company", id)
	}
	return &c, nil
}

// GetGPEntity loads a GP entity.
func (s *PostgresStore) GetGPEntity(ctx context.Context, id int64) (*models.GPEntity, error) {
	var gp models.GPEntity
	err := s.conn(ctx).QueryRow(ctx, `SELECT id, name FROM gp_entities WHERE id = $1`, id).Scan(&gp.ID, &gp.Name)
	if err != nil {
		return nil, noRows(err, "gp entity", id)
	}
	return &gp, nil
}

// ListInvestmentDocuments lists an investment's documents.
func (s *PostgresStore) ListInvestmentDocuments(ctx context.Context, investmentID int64) ([]*models.InvestmentDocument, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT id, investment_id, name, doc_type, status, note
		 FROM investment_documents WHERE investment_id = $1 ORDER BY id`, investmentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.InvestmentDocument, error) {
		var d models.InvestmentDocument
		err := row.Scan(&d.ID, &d.InvestmentID, &d.Name, &d.DocType, &d.Status, &d.Note)
		return &d, err
	})
}

// CreateInvestmentDocument inserts an investment document.
func (s *PostgresStore) CreateInvestmentDocument(ctx context.Context, d *models.InvestmentDocument) error {
	return s.conn(ctx).QueryRow(ctx,
		`INSERT INTO investment_documents (investment_id, name, doc_type, status, note)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		d.InvestmentID, d.Name, d.DocType, d.Status, d.Note,
	).Scan(&d.ID)
}
