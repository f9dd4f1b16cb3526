package repository

import (
	"context"

	"fundops/backend/pkg/models"
)

// CreateFund inserts a fund.
func (s *PostgresStore) CreateFund(ctx context.Context, f *models.Fund) error {
	return s.conn(ctx).QueryRow(ctx,
		`INSERT INTO funds (name, status, formation_date, commitment) VALUES ($1, $2, $3, $4) RETURNING id`,
		f.Name, f.Status, f.FormationDate, f.Commitment,
	).Scan(&f.ID)
}

// CreateNoticePeriod inserts a fund notice period.
func (s *PostgresStore) CreateNoticePeriod(ctx context.Context, p *models.FundNoticePeriod) error {
	basis := p.DayBasis
	if basis == "" {
		basis = models.DayBasisBusiness
	}
	return s.conn(ctx).QueryRow(ctx,
		`INSERT INTO fund_notice_periods (fund_id, notice_type, label, business_days, day_basis, memo)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		p.FundID, p.NoticeType, p.Label, p.BusinessDays, basis, p.Memo,
	).Scan(&p.ID)
}

// CreateCompany inserts a company.
func (s *PostgresStore) CreateCompany(ctx context.Context, c *models.Company) error {
	return s.conn(ctx).QueryRow(ctx, `INSERT INTO companies (name) VALUES ($1) RETURNING id`, c.Name).Scan(&c.ID)
}

// CreateInvestment inserts an investment.
func (s *PostgresStore) CreateInvestment(ctx context.Context, inv *models.Investment) error {
	return s.conn(ctx).QueryRow(ctx,
		`INSERT INTO investments (fund_id, company_id) VALUES ($1, $2) RETURNING id`,
		inv.FundID, inv.CompanyID,
	).Scan(&inv.ID)
}

// CreateGPEntity inserts a GP entity.
func (s *PostgresStore) CreateGPEntity(ctx context.Context, gp *models.GPEntity) error {
	return s.conn(ctx).QueryRow(ctx, `INSERT INTO gp_entities (name) VALUES ($1) RETURNING id`, gp.Name).Scan(&gp.ID)
}

// CreateCapitalCall inserts a capital call with its items.
func (s *PostgresStore) CreateCapitalCall(ctx context.Context, call *models.CapitalCall, items []*models.CapitalCallItem) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		q := s.conn(ctx)
		err := q.QueryRow(ctx,
			`INSERT INTO capital_calls (fund_id, call_date, call_type, total_amount, linked_workflow_instance_id)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			call.FundID, call.CallDate, call.CallType, call.TotalAmount, call.LinkedWorkflowInstanceID,
		).Scan(&call.ID)
		if err != nil {
			return err
		}
		for _, it := range items {
			it.CapitalCallID = call.ID
			err := q.QueryRow(ctx,
				`INSERT INTO capital_call_items (capital_call_id, lp_id, amount, paid, paid_date)
				 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
				it.CapitalCallID, it.LPID, it.Amount, it.Paid, it.PaidDate,
			).Scan(&it.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateLPTransfer inserts an LP transfer.
func (s *PostgresStore) CreateLPTransfer(ctx context.Context, t *models.LPTransfer) error {
	return s.conn(ctx).QueryRow(ctx,
		`INSERT INTO lp_transfers (fund_id, from_lp_id, to_lp_id, to_lp_name, to_lp_type, to_lp_business_number,
			transfer_amount, status, workflow_instance_id, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		t.FundID, t.FromLPID, t.ToLPID, t.ToLPName, t.ToLPType, t.ToLPBusinessNumber,
		t.TransferAmount, t.Status, t.WorkflowInstanceID, t.CompletedAt,
	).Scan(&t.ID)
}
